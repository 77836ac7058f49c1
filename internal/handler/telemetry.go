package handlers

import (
	"TourGuard/internal/models"
	"TourGuard/pkg/metrics"
	"TourGuard/pkg/response"

	"github.com/gin-gonic/gin"
)

// handleIngestTelemetry 设备遥测入口：更新体征/位置，
// 越界时置位设备标志并自动产生告警
func (h *Handlers) handleIngestTelemetry(c *gin.Context) {
	var sample models.TelemetrySample
	if err := c.ShouldBindJSON(&sample); err != nil {
		response.Fail(c, "invalid telemetry payload", nil)
		return
	}

	result, err := models.IngestTelemetry(h.db, c.Param("serial"), sample)
	if err != nil {
		response.Error(c, err)
		return
	}
	metrics.TelemetrySample()
	response.Success(c, "telemetry accepted", result)
}
