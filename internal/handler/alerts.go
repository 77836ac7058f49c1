package handlers

import (
	"strconv"

	"TourGuard/internal/models"
	"TourGuard/pkg/response"

	"github.com/gin-gonic/gin"
)

type panicRequest struct {
	Description string           `json:"description"`
	Location    *models.GeoPoint `json:"location"`
}

// handlePanic 游客SOS：立即产生 critical 告警
func (h *Handlers) handlePanic(c *gin.Context) {
	actor := models.CurrentActor(c)
	tourist, err := models.GetTouristByAccount(h.db, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req panicRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Fail(c, "invalid request", nil)
		return
	}

	location := tourist.CurrentLocation
	if req.Location != nil {
		location = *req.Location
		if err := models.AppendLocation(h.db, tourist.ID, location); err != nil {
			response.Error(c, err)
			return
		}
	}

	title := "SOS triggered"
	if req.Description != "" {
		title = req.Description
	}
	alert, err := models.CreateAlert(h.db, models.CreateAlertInput{
		TouristID:   tourist.ID,
		Type:        models.AlertTypePanic,
		Severity:    models.SeverityCritical,
		Title:       title,
		Description: req.Description,
		Location:    location,
		Metadata: models.AlertMetadata{
			Source:     "manual",
			Confidence: models.ConfidenceTrigger,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "alert raised", alert)
}

// handleListAlerts 员工视角告警列表，可按状态过滤
func (h *Handlers) handleListAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	alerts, err := models.ListAlerts(h.db, c.Query("status"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", alerts)
}

func (h *Handlers) handleGetAlert(c *gin.Context) {
	alert, err := models.GetAlert(h.db, c.Param("alertId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", alert)
}

type alertNotesRequest struct {
	Notes string `json:"notes"`
}

// handleAcknowledgeAlert active → acknowledged
func (h *Handlers) handleAcknowledgeAlert(c *gin.Context) {
	var req alertNotesRequest
	_ = c.ShouldBindJSON(&req)

	alert, err := models.AcknowledgeAlert(h.db, models.CurrentActor(c), c.Param("alertId"), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "alert acknowledged", alert)
}

type resolveAlertRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	Notes      string `json:"notes"`
}

// handleResolveAlert active/acknowledged → resolved（终态）
func (h *Handlers) handleResolveAlert(c *gin.Context) {
	var req resolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "resolution is required", nil)
		return
	}

	alert, err := models.ResolveAlert(h.db, models.CurrentActor(c), c.Param("alertId"), req.Resolution, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "alert resolved", alert)
}

type falseAlarmRequest struct {
	Reason string `json:"reason"`
}

// handleMarkFalseAlarm active/acknowledged → false_alarm（终态）
func (h *Handlers) handleMarkFalseAlarm(c *gin.Context) {
	var req falseAlarmRequest
	_ = c.ShouldBindJSON(&req)

	alert, err := models.MarkFalseAlarm(h.db, models.CurrentActor(c), c.Param("alertId"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "alert marked as false alarm", alert)
}

type alertActionRequest struct {
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
}

// handleAddAlertAction 追加处置动作
func (h *Handlers) handleAddAlertAction(c *gin.Context) {
	var req alertActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "action is required", nil)
		return
	}

	alert, err := models.AddAlertAction(h.db, models.CurrentActor(c), c.Param("alertId"), req.Action, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "action recorded", alert)
}

type escalateAlertRequest struct {
	EscalatedTo []string `json:"escalatedTo"`
	Reason      string   `json:"reason"`
}

// handleEscalateAlert 升级告警
func (h *Handlers) handleEscalateAlert(c *gin.Context) {
	var req escalateAlertRequest
	_ = c.ShouldBindJSON(&req)

	alert, err := models.EscalateAlert(h.db, models.CurrentActor(c), c.Param("alertId"), req.EscalatedTo, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "alert escalated", alert)
}

// handleDeleteAlert 软删除（员工）
func (h *Handlers) handleDeleteAlert(c *gin.Context) {
	if err := models.SoftDeleteAlert(h.db, models.CurrentActor(c), c.Param("alertId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "alert deleted", nil)
}
