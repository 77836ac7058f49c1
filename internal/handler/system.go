package handlers

import (
	"net/http"

	"TourGuard/internal/models"
	"TourGuard/pkg/config"
	tgerrors "TourGuard/pkg/errors"
	"TourGuard/pkg/middleware"
	"TourGuard/pkg/notification"
	"TourGuard/pkg/response"

	"github.com/gin-gonic/gin"
)

// handleUpdateRateLimiterConfig 更新限流配置（管理员）
func (h *Handlers) handleUpdateRateLimiterConfig(c *gin.Context) {
	actor := models.CurrentActor(c)
	if actor.Role != models.RoleAdmin {
		response.Error(c, tgerrors.Forbidden("only admins may change rate limits"))
		return
	}

	var cfg middleware.RateLimiterConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}

	h.limiter.UpdateConfig(cfg)
	response.Success(c, "rate limiter config updated", nil)
}

// handleEscalationSweep 手动触发一次升级扫描（管理员）
func (h *Handlers) handleEscalationSweep(c *gin.Context) {
	actor := models.CurrentActor(c)
	if actor.Role != models.RoleAdmin {
		response.Error(c, tgerrors.Forbidden("only admins may trigger an escalation sweep"))
		return
	}

	policy := models.DefaultEscalationPolicy()
	if config.GlobalConfig != nil && config.GlobalConfig.AttentionWindow > 0 {
		policy.AttentionWindow = config.GlobalConfig.AttentionWindow
	}
	escalated, errs := models.RunEscalationSweep(h.db, policy)

	failures := make([]string, 0, len(errs))
	for _, err := range errs {
		failures = append(failures, err.Error())
	}
	response.Success(c, "sweep completed", gin.H{
		"escalated": escalated,
		"failures":  failures,
	})
}

// handleWsStats WebSocket统计
func (h *Handlers) handleWsStats(c *gin.Context) {
	h.ws.GetStats(c)
}

// handleWebSocket 建立推送连接。员工进 staff 房间，
// 游客只进自己的 tourist:<id> 房间
func (h *Handlers) handleWebSocket(c *gin.Context) {
	actor := models.CurrentActor(c)

	var groups []string
	if actor.IsPrivileged() {
		groups = []string{notification.RoomStaff}
	} else {
		tourist, err := models.GetTouristByAccount(h.db, actor.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		groups = []string{notification.RoomTourist(tourist.ID)}
	}
	h.ws.Serve(c, actor.ID, groups)
}

// handleEventStream SSE订阅，只读仪表盘用。房间划分与WebSocket一致
func (h *Handlers) handleEventStream(c *gin.Context) {
	actor := models.CurrentActor(c)

	var groups []string
	if actor.IsPrivileged() {
		groups = []string{notification.RoomStaff}
	} else {
		tourist, err := models.GetTouristByAccount(h.db, actor.ID)
		if err != nil {
			response.Error(c, err)
			return
		}
		groups = []string{notification.RoomTourist(tourist.ID)}
	}
	h.sse.Serve(c, actor.ID, groups)
}

// handleHealthCheck 健康检查接口
func (h *Handlers) handleHealthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database connection failed"})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database ping failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
