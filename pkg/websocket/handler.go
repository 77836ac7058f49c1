package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler WebSocket HTTP处理器
type Handler struct {
	hub *Hub
}

// NewHandler 创建新的WebSocket处理器
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// Serve 处理WebSocket连接请求，userID 与初始房间由调用方决定
func (h *Handler) Serve(c *gin.Context, userID string, groups []string) {
	HandleWebSocket(h.hub, c.Writer, c.Request, userID, groups)
}

// GetStats 获取WebSocket统计信息
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total_connections":   h.hub.GetConnectionCount(),
		"max_connections":     h.hub.config.MaxConnections,
		"heartbeat_interval":  h.hub.config.HeartbeatInterval.String(),
		"connection_timeout":  h.hub.config.ConnectionTimeout.String(),
		"message_buffer_size": h.hub.config.MessageBufferSize,
		"message_queue_size":  h.hub.config.MessageQueueSize,
		"drop_on_full":        h.hub.config.DropOnFull,
	})
}

// HealthCheck WebSocket健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	if h.hub.ctx.Err() != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  h.hub.ctx.Err().Error(),
		})
		return
	}

	total := h.hub.GetConnectionCount()
	max := h.hub.config.MaxConnections
	status := "healthy"
	if total >= max*9/10 {
		status = "warning"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            status,
		"total_connections": total,
		"max_connections":   max,
		"timestamp":         time.Now().Unix(),
	})
}
