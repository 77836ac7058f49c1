package handlers

import (
	"path/filepath"

	"TourGuard/internal/models"
	"TourGuard/pkg/config"
	tgerrors "TourGuard/pkg/errors"
	"TourGuard/pkg/metrics"
	"TourGuard/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type issueDigitalIDRequest struct {
	DocumentType   string `json:"documentType" binding:"required"`
	DocumentNumber string `json:"documentNumber" binding:"required"`
	PhotoRef       string `json:"photoRef"`
	ValidDays      int    `json:"validDays"`
	Name           string `json:"name"`
}

// handleIssueDigitalID 签发数字身份证。无档案的主体会先合成占位档案
func (h *Handlers) handleIssueDigitalID(c *gin.Context) {
	var req issueDigitalIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "document type and number are required", nil)
		return
	}

	if req.ValidDays <= 0 && config.GlobalConfig != nil {
		req.ValidDays = config.GlobalConfig.DigitalIDValidDays
	}

	card, err := models.IssueDigitalID(h.db, models.CurrentActor(c), models.IssueDigitalIDInput{
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		PhotoRef:       req.PhotoRef,
		ValidDays:      req.ValidDays,
		Name:           req.Name,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	metrics.DigitalIDIssued()
	response.Created(c, "digital id issued", card)
}

// handleUploadPhoto 上传证件照片，返回的 photoRef 在签发时引用
func (h *Handlers) handleUploadPhoto(c *gin.Context) {
	file, err := c.FormFile("photo")
	if err != nil {
		response.Fail(c, "photo file is required", nil)
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Fail(c, "unable to read photo", nil)
		return
	}
	defer src.Close()

	key := "photos/" + uuid.NewString() + filepath.Ext(file.Filename)
	if err := h.photos.Write(key, src); err != nil {
		response.Error(c, tgerrors.DependencyUnavailable("photo storage", err))
		return
	}
	response.Created(c, "photo uploaded", gin.H{
		"photoRef": key,
		"url":      h.photos.PublicURL(key),
	})
}

// handleCurrentDigitalID 当前有效证件（最新一张未过期的卡）
func (h *Handlers) handleCurrentDigitalID(c *gin.Context) {
	actor := models.CurrentActor(c)
	tourist, err := models.GetTouristByAccount(h.db, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	card, err := models.CurrentDigitalID(h.db, tourist.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", card)
}

// handleDigitalIDHistory 卡片历史，按签发顺序
func (h *Handlers) handleDigitalIDHistory(c *gin.Context) {
	actor := models.CurrentActor(c)
	tourist, err := models.GetTouristByAccount(h.db, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	cards, err := models.ListDigitalIDCards(h.db, tourist.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", cards)
}

func (h *Handlers) handleGetDigitalIDCard(c *gin.Context) {
	card, err := models.GetDigitalIDCard(h.db, c.Param("serial"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "ok", gin.H{
		"card":   card,
		"status": card.EffectiveStatus(),
	})
}

// handleModifyDigitalIDCard 已签发的卡不可变更，恒定拒绝
func (h *Handlers) handleModifyDigitalIDCard(c *gin.Context) {
	err := models.ModifyDigitalIDCard(h.db, c.Param("serial"))
	response.Error(c, err)
}
