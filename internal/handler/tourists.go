package handlers

import (
	"strconv"

	"TourGuard/internal/models"
	tgerrors "TourGuard/pkg/errors"
	"TourGuard/pkg/response"

	"github.com/gin-gonic/gin"
)

func touristIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Fail(c, "invalid tourist id", nil)
		return 0, false
	}
	return uint(id), true
}

type createTouristRequest struct {
	AccountID      string `json:"accountId" binding:"required"`
	Name           string `json:"name" binding:"required"`
	Phone          string `json:"phone"`
	PassportNumber string `json:"passportNumber" binding:"required"`
	RiskLevel      string `json:"riskLevel"`
}

// handleCreateTourist 建档（员工）
func (h *Handlers) handleCreateTourist(c *gin.Context) {
	actor := models.CurrentActor(c)
	if !actor.IsPrivileged() {
		response.Error(c, tgerrors.Forbidden("only staff may create tourist profiles"))
		return
	}

	var req createTouristRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}

	tourist, err := models.CreateTourist(h.db, &models.Tourist{
		AccountID:      req.AccountID,
		Name:           req.Name,
		Phone:          req.Phone,
		PassportNumber: req.PassportNumber,
		RiskLevel:      req.RiskLevel,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "tourist created", tourist)
}

// handleCurrentTourist 当前主体自己的档案
func (h *Handlers) handleCurrentTourist(c *gin.Context) {
	actor := models.CurrentActor(c)
	tourist, err := models.GetTouristByAccount(h.db, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", tourist)
}

// handleGetTourist 查档。游客只能看自己
func (h *Handlers) handleGetTourist(c *gin.Context) {
	id, ok := touristIDParam(c)
	if !ok {
		return
	}
	tourist, err := models.GetTourist(h.db, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	actor := models.CurrentActor(c)
	if !actor.IsPrivileged() && tourist.AccountID != actor.ID {
		response.Error(c, tgerrors.Forbidden("tourists may only view their own profile"))
		return
	}
	response.Success(c, "ok", tourist)
}

type updateTouristStatusRequest struct {
	Status    string `json:"status"`
	RiskLevel string `json:"riskLevel"`
}

// handleUpdateTouristStatus 更新状态/风险等级（员工），触发安全分重算
func (h *Handlers) handleUpdateTouristStatus(c *gin.Context) {
	id, ok := touristIDParam(c)
	if !ok {
		return
	}
	var req updateTouristStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}

	tourist, err := models.UpdateTouristStatus(h.db, models.CurrentActor(c), id, req.Status, req.RiskLevel)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "tourist updated", tourist)
}

// handleAppendLocation 追加位置点。游客只能上报自己的位置
func (h *Handlers) handleAppendLocation(c *gin.Context) {
	id, ok := touristIDParam(c)
	if !ok {
		return
	}
	var point models.GeoPoint
	if err := c.ShouldBindJSON(&point); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}

	actor := models.CurrentActor(c)
	if !actor.IsPrivileged() {
		owner, err := models.GetTouristByAccount(h.db, actor.ID)
		if err != nil || owner.ID != id {
			response.Error(c, tgerrors.Forbidden("tourists may only report their own location"))
			return
		}
	}

	if err := models.AppendLocation(h.db, id, point); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "location recorded", nil)
}

// handleListTouristAlerts 某游客的告警历史。游客只能看自己的
func (h *Handlers) handleListTouristAlerts(c *gin.Context) {
	id, ok := touristIDParam(c)
	if !ok {
		return
	}

	actor := models.CurrentActor(c)
	if !actor.IsPrivileged() {
		owner, err := models.GetTouristByAccount(h.db, actor.ID)
		if err != nil || owner.ID != id {
			response.Error(c, tgerrors.Forbidden("tourists may only view their own alerts"))
			return
		}
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	alerts, err := models.ListTouristAlerts(h.db, id, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", alerts)
}

// handleDeactivateTourist 软删除（员工）
func (h *Handlers) handleDeactivateTourist(c *gin.Context) {
	id, ok := touristIDParam(c)
	if !ok {
		return
	}
	if err := models.DeactivateTourist(h.db, models.CurrentActor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "tourist deactivated", nil)
}
