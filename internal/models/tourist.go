package models

import (
	"errors"
	"time"

	tgerrors "TourGuard/pkg/errors"
	"TourGuard/pkg/util"

	"gorm.io/gorm"
)

// 游客状态
const (
	TouristStatusActive    = "active"
	TouristStatusInactive  = "inactive"
	TouristStatusMissing   = "missing"
	TouristStatusEmergency = "emergency"
	TouristStatusSafe      = "safe"
)

// 风险等级
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// GeoPoint 位置点
type GeoPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Tourist 被监护的游客
type Tourist struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	AccountID string `json:"accountId" gorm:"uniqueIndex;size:64"` // 认证账号ID，1:1
	Name      string `json:"name" gorm:"size:255"`
	Phone     string `json:"phone,omitempty" gorm:"size:32"`

	PassportNumber string `json:"passportNumber" gorm:"uniqueIndex;size:64"`

	Status    string `json:"status" gorm:"size:16;default:active"`
	RiskLevel string `json:"riskLevel" gorm:"size:16;default:low"`

	SafetyScore int `json:"safetyScore" gorm:"default:100"` // 0-100，由 RecomputeSafety 统一维护

	CurrentLocation GeoPoint   `json:"currentLocation" gorm:"serializer:json"`
	LocationHistory []GeoPoint `json:"locationHistory" gorm:"serializer:json"` // 只追加

	AlertsTriggered int `json:"alertsTriggered" gorm:"default:0"` // 单调递增

	// 当前证件序列号，派生缓存；卡片历史才是事实来源
	CurrentCardSerial string `json:"currentCardSerial,omitempty" gorm:"size:32"`

	IsActive  bool      `json:"isActive" gorm:"default:true"` // 软删除位
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// CalculateSafetyScore 计算安全分，始终落在 [0,100]
// 扣分项相互独立叠加：风险等级、状态、历史告警次数（封顶 30）
// critical 风险等级在此处没有单独扣分，与原始口径保持一致
func CalculateSafetyScore(riskLevel, status string, alertsTriggered int) int {
	score := 100

	switch riskLevel {
	case RiskHigh:
		score -= 30
	case RiskMedium:
		score -= 15
	}

	switch status {
	case TouristStatusMissing:
		score -= 50
	case TouristStatusEmergency:
		score -= 80
	}

	penalty := alertsTriggered * 5
	if penalty > 30 {
		penalty = 30
	}
	score -= penalty

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// RecomputeSafety 重算并落库安全分。所有影响安全分的变更
// （告警触发、状态/风险变化）都通过 SigSafetyRecompute 汇入这里
func RecomputeSafety(db *gorm.DB, touristID uint) (int, error) {
	tourist, err := GetTourist(db, touristID)
	if err != nil {
		return 0, err
	}
	score := CalculateSafetyScore(tourist.RiskLevel, tourist.Status, tourist.AlertsTriggered)
	if err := db.Model(&Tourist{}).Where("id = ?", touristID).
		Update("safety_score", score).Error; err != nil {
		return 0, wrapStoreErr(err, "tourist")
	}
	return score, nil
}

// CreateTourist 创建游客档案
func CreateTourist(db *gorm.DB, tourist *Tourist) (*Tourist, error) {
	if tourist.Status == "" {
		tourist.Status = TouristStatusActive
	}
	if tourist.RiskLevel == "" {
		tourist.RiskLevel = RiskLow
	}
	tourist.SafetyScore = CalculateSafetyScore(tourist.RiskLevel, tourist.Status, tourist.AlertsTriggered)
	tourist.IsActive = true
	if err := db.Create(tourist).Error; err != nil {
		return nil, wrapStoreErr(err, "tourist")
	}
	return tourist, nil
}

// GetTourist 按ID获取游客
func GetTourist(db *gorm.DB, id uint) (*Tourist, error) {
	var tourist Tourist
	if err := db.First(&tourist, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tgerrors.NotFound("tourist", uintString(id))
		}
		return nil, wrapStoreErr(err, "tourist")
	}
	return &tourist, nil
}

// GetTouristByAccount 按认证账号获取游客
func GetTouristByAccount(db *gorm.DB, accountID string) (*Tourist, error) {
	var tourist Tourist
	if err := db.Where("account_id = ?", accountID).First(&tourist).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tgerrors.NotFound("tourist", accountID)
		}
		return nil, wrapStoreErr(err, "tourist")
	}
	return &tourist, nil
}

// UpdateTouristStatus 更新状态/风险等级（员工操作），并触发安全分重算
func UpdateTouristStatus(db *gorm.DB, actor Actor, touristID uint, status, riskLevel string) (*Tourist, error) {
	if !actor.IsPrivileged() {
		return nil, tgerrors.Forbidden("only staff may change tourist status")
	}
	tourist, err := GetTourist(db, touristID)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if status != "" {
		if !validTouristStatus(status) {
			return nil, tgerrors.WithCodef(tgerrors.CodeInvalid, "unknown tourist status %q", status)
		}
		updates["status"] = status
		tourist.Status = status
	}
	if riskLevel != "" {
		if !validRiskLevel(riskLevel) {
			return nil, tgerrors.WithCodef(tgerrors.CodeInvalid, "unknown risk level %q", riskLevel)
		}
		updates["risk_level"] = riskLevel
		tourist.RiskLevel = riskLevel
	}
	if len(updates) == 0 {
		return tourist, nil
	}
	if err := db.Model(&Tourist{}).Where("id = ?", touristID).Updates(updates).Error; err != nil {
		return nil, wrapStoreErr(err, "tourist")
	}

	util.Sig().Emit(SigSafetyRecompute, touristID)
	return GetTourist(db, touristID)
}

// AppendLocation 追加位置点并刷新当前位置（历史只增不删）
func AppendLocation(db *gorm.DB, touristID uint, point GeoPoint) error {
	tourist, err := GetTourist(db, touristID)
	if err != nil {
		return err
	}
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now()
	}
	tourist.CurrentLocation = point
	tourist.LocationHistory = append(tourist.LocationHistory, point)
	if err := db.Save(tourist).Error; err != nil {
		return wrapStoreErr(err, "tourist")
	}
	return nil
}

// DeactivateTourist 软删除（从不硬删）
func DeactivateTourist(db *gorm.DB, actor Actor, touristID uint) error {
	if !actor.IsPrivileged() {
		return tgerrors.Forbidden("only staff may deactivate a tourist")
	}
	res := db.Model(&Tourist{}).Where("id = ?", touristID).Updates(map[string]any{
		"is_active": false,
		"status":    TouristStatusInactive,
	})
	if res.Error != nil {
		return wrapStoreErr(res.Error, "tourist")
	}
	if res.RowsAffected == 0 {
		return tgerrors.NotFound("tourist", uintString(touristID))
	}
	util.Sig().Emit(SigSafetyRecompute, touristID)
	return nil
}

func validTouristStatus(s string) bool {
	switch s {
	case TouristStatusActive, TouristStatusInactive, TouristStatusMissing,
		TouristStatusEmergency, TouristStatusSafe:
		return true
	}
	return false
}

func validRiskLevel(s string) bool {
	switch s {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}
