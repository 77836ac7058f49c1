package handlers

import (
	"TourGuard/internal/models"
	"TourGuard/pkg/cache"
	"TourGuard/pkg/config"
	"TourGuard/pkg/metrics"
	"TourGuard/pkg/middleware"
	"TourGuard/pkg/sse"
	stores "TourGuard/pkg/storage"
	"TourGuard/pkg/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handlers struct {
	db      *gorm.DB
	ws      *websocket.Handler
	sse     *sse.Hub
	photos  stores.Store
	idem    cache.Cache
	limiter *middleware.RateLimiter
}

func NewHandlers(db *gorm.DB, hub *websocket.Hub, sseHub *sse.Hub, idem cache.Cache) *Handlers {
	return &Handlers{
		db:     db,
		ws:     websocket.NewHandler(hub),
		sse:    sseHub,
		photos: stores.NewMinioStore(),
		idem:   idem,
		limiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:       "300-M",
			Identifier: "ip",
			PerRouteRates: map[string]string{
				"/api/alerts/panic":      "10-M",
				"/api/telemetry/:serial": "120-M",
			},
			SkipPaths:  []string{"/health", "/metrics"},
			AddHeaders: true,
		}, nil).WithObserver(middleware.NewPrometheusObserver()),
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	engine.GET("/health", h.handleHealthCheck)
	engine.GET("/metrics", metrics.Handler())

	r := engine.Group(config.GlobalConfig.APIPrefix)

	// Register Global Singleton DB
	r.Use(middleware.InjectDB(h.db))
	r.Use(h.limiter.Middleware())

	h.registerSystemRoutes(r)

	// Register Business Module Routes
	h.registerTouristRoutes(r)
	h.registerDeviceRoutes(r)
	h.registerTelemetryRoutes(r)
	h.registerAlertRoutes(r)
	h.registerDigitalIDRoutes(r)

	r.GET("/ws", models.AuthRequired, h.handleWebSocket)
	r.GET("/events", models.AuthRequired, h.handleEventStream)
}

// 游客档案模块
func (h *Handlers) registerTouristRoutes(r *gin.RouterGroup) {
	tourists := r.Group("tourists")
	tourists.Use(models.AuthRequired)
	{
		tourists.POST("", h.handleCreateTourist)

		tourists.GET("/me", h.handleCurrentTourist)

		tourists.GET("/:id", h.handleGetTourist)

		tourists.PUT("/:id/status", h.handleUpdateTouristStatus)

		tourists.POST("/:id/location", h.handleAppendLocation)

		tourists.GET("/:id/alerts", h.handleListTouristAlerts)

		tourists.DELETE("/:id", h.handleDeactivateTourist)
	}
}

// 设备模块
func (h *Handlers) registerDeviceRoutes(r *gin.RouterGroup) {
	devices := r.Group("devices")
	devices.Use(models.AuthRequired)
	{
		devices.POST("", h.handleRegisterDevice)

		devices.GET("/:serial", h.handleGetDevice)

		devices.POST("/:serial/bind", h.handleBindDevice)

		devices.POST("/:serial/flags/clear", h.handleClearDeviceFlags)
	}
}

// 遥测入口。设备经网关直连，不走用户认证
func (h *Handlers) registerTelemetryRoutes(r *gin.RouterGroup) {
	r.POST("/telemetry/:serial", h.handleIngestTelemetry)
}

// 告警生命周期模块
func (h *Handlers) registerAlertRoutes(r *gin.RouterGroup) {
	alerts := r.Group("alerts")
	alerts.Use(models.AuthRequired)
	{
		// SOS按钮可能因网络抖动重复提交，幂等窗口内只受理一次
		alerts.POST("/panic", middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{Store: h.idem}), h.handlePanic)

		alerts.GET("", h.handleListAlerts)

		alerts.GET("/:alertId", h.handleGetAlert)

		alerts.POST("/:alertId/acknowledge", h.handleAcknowledgeAlert)

		alerts.POST("/:alertId/resolve", h.handleResolveAlert)

		alerts.POST("/:alertId/false-alarm", h.handleMarkFalseAlarm)

		alerts.POST("/:alertId/actions", h.handleAddAlertAction)

		alerts.POST("/:alertId/escalate", h.handleEscalateAlert)

		alerts.DELETE("/:alertId", h.handleDeleteAlert)
	}
}

// 数字身份证模块
func (h *Handlers) registerDigitalIDRoutes(r *gin.RouterGroup) {
	cards := r.Group("digital-ids")
	cards.Use(models.AuthRequired)
	{
		cards.POST("", h.handleIssueDigitalID)

		cards.POST("/photo", h.handleUploadPhoto)

		cards.GET("/me/current", h.handleCurrentDigitalID)

		cards.GET("/me/history", h.handleDigitalIDHistory)

		cards.GET("/:serial", h.handleGetDigitalIDCard)

		// 已签发的卡不可变更，恒定拒绝
		cards.PUT("/:serial", h.handleModifyDigitalIDCard)
	}
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	system := r.Group("system")
	{
		system.GET("/health", h.handleHealthCheck)

		system.GET("/ws/stats", models.AuthRequired, h.handleWsStats)

		system.POST("/rate-limiter/config", models.AuthRequired, h.handleUpdateRateLimiterConfig)

		system.POST("/escalation/sweep", models.AuthRequired, h.handleEscalationSweep)
	}
}
