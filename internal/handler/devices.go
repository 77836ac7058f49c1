package handlers

import (
	"TourGuard/internal/models"
	tgerrors "TourGuard/pkg/errors"
	"TourGuard/pkg/response"

	"github.com/gin-gonic/gin"
)

type registerDeviceRequest struct {
	SerialNumber string `json:"serialNumber" binding:"required"`
	TouristID    *uint  `json:"touristId"`
}

// handleRegisterDevice 注册设备，可同时绑定游客（员工）
func (h *Handlers) handleRegisterDevice(c *gin.Context) {
	actor := models.CurrentActor(c)
	if !actor.IsPrivileged() {
		response.Error(c, tgerrors.Forbidden("only staff may register devices"))
		return
	}

	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}

	device, err := models.RegisterDevice(h.db, &models.Device{
		SerialNumber: req.SerialNumber,
		TouristID:    req.TouristID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "device registered", device)
}

func (h *Handlers) handleGetDevice(c *gin.Context) {
	device, err := models.GetDevice(h.db, c.Param("serial"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", device)
}

type bindDeviceRequest struct {
	TouristID uint `json:"touristId" binding:"required"`
}

// handleBindDevice 绑定设备到游客
func (h *Handlers) handleBindDevice(c *gin.Context) {
	var req bindDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}

	device, err := models.BindDevice(h.db, models.CurrentActor(c), c.Param("serial"), req.TouristID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "device bound", device)
}

// handleClearDeviceFlags 清除设备活动标志（标志不会自动复位）
func (h *Handlers) handleClearDeviceFlags(c *gin.Context) {
	device, err := models.ClearDeviceFlags(h.db, models.CurrentActor(c), c.Param("serial"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "device flags cleared", device)
}
