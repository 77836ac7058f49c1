package models

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	tgerrors "TourGuard/pkg/errors"
	"TourGuard/pkg/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 告警类型
const (
	AlertTypeEmergency   = "emergency"
	AlertTypePanic       = "panic"
	AlertTypeMedical     = "medical"
	AlertTypeLocation    = "location"
	AlertTypeDevice      = "device"
	AlertTypeGeofence    = "geofence"
	AlertTypeWeather     = "weather"
	AlertTypeSecurity    = "security"
	AlertTypeSystem      = "system"
	AlertTypeMaintenance = "maintenance"
)

// 严重度
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// 告警状态。resolved / false_alarm 为终态，终态后拒绝一切迁移。
// escalated 只是对外状态枚举的完整映射：升级操作记录在
// Escalation 里，不改变 Status 本身
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
	AlertStatusFalseAlarm   = "false_alarm"
	AlertStatusEscalated    = "escalated"
)

// 时间线事件名
const (
	TimelineCreated      = "created"
	TimelineAcknowledged = "acknowledged"
	TimelineResolved     = "resolved"
	TimelineFalseAlarm   = "false_alarm"
	TimelineActionTaken  = "action_taken"
	TimelineEscalated    = "escalated"
)

// TimelineEntry 时间线条目，只追加，从不修改或删除
type TimelineEntry struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Event       string            `json:"event"`
	Description string            `json:"description"`
	Actor       string            `json:"actor,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

// AlertAction 处置动作记录
type AlertAction struct {
	Action string    `json:"action"`
	Notes  string    `json:"notes,omitempty"`
	By     string    `json:"by"`
	At     time.Time `json:"at"`
}

// AlertResponse 处置信息
type AlertResponse struct {
	AcknowledgedBy string        `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledgedAt,omitempty"`
	ResolvedBy     string        `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time    `json:"resolvedAt,omitempty"`
	Resolution     string        `json:"resolution,omitempty"`
	Actions        []AlertAction `json:"actions,omitempty"`
}

// AlertEscalation 升级簿记。EscalatedTo 只累加、不去重，保留审计轨迹
type AlertEscalation struct {
	Level       int        `json:"level"`
	EscalatedAt *time.Time `json:"escalatedAt,omitempty"`
	EscalatedTo []string   `json:"escalatedTo,omitempty"`
}

// AlertMetadata 触发来源
type AlertMetadata struct {
	Source     string `json:"source,omitempty"`     // device / manual / system
	Confidence int    `json:"confidence,omitempty"` // 0-100
	Trigger    string `json:"trigger,omitempty"`
}

// Alert 安全事件
type Alert struct {
	ID      uint   `json:"-" gorm:"primaryKey"`
	AlertID string `json:"alertId" gorm:"uniqueIndex;size:16"` // ALT-<year>-<6位随机数字>

	TouristID uint  `json:"touristId" gorm:"index"`
	DeviceID  *uint `json:"deviceId,omitempty" gorm:"index"`

	Type     string `json:"type" gorm:"size:16"`
	Severity string `json:"severity" gorm:"size:16"`
	Status   string `json:"status" gorm:"size:16;index;default:active"`

	Title       string `json:"title" gorm:"size:255"`
	Description string `json:"description,omitempty" gorm:"size:1024"`

	Location   GeoPoint        `json:"location" gorm:"serializer:json"`
	Metadata   AlertMetadata   `json:"metadata" gorm:"serializer:json"`
	Response   AlertResponse   `json:"response" gorm:"serializer:json"`
	Escalation AlertEscalation `json:"escalation" gorm:"serializer:json"`
	Timeline   []TimelineEntry `json:"timeline" gorm:"serializer:json"`

	// 最近一次状态迁移时间，升级扫描据此判断注意力窗口
	LastTransitionAt time.Time `json:"lastTransitionAt" gorm:"index"`

	IsActive  bool      `json:"isActive" gorm:"default:true"` // 软删除位
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// alertLocks 同一告警的状态迁移串行化
var alertLocks = util.NewKeyedMutex()

const alertIDMaxAttempts = 5

// CreateAlertInput 创建参数
type CreateAlertInput struct {
	TouristID   uint
	DeviceID    *uint
	Type        string
	Severity    string
	Title       string
	Description string
	Location    GeoPoint
	Metadata    AlertMetadata
}

func newTimelineEntry(event, description, actor string, data map[string]string) TimelineEntry {
	return TimelineEntry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Event:       event,
		Description: description,
		Actor:       actor,
		Data:        data,
	}
}

// generateAlertID 生成人类可读告警号，冲突重试
func generateAlertID(db *gorm.DB) (string, error) {
	year := time.Now().Year()
	for i := 0; i < alertIDMaxAttempts; i++ {
		candidate := fmt.Sprintf("ALT-%d-%06d", year, rand.Intn(1000000))
		var count int64
		if err := db.Model(&Alert{}).Where("alert_id = ?", candidate).Count(&count).Error; err != nil {
			return "", wrapStoreErr(err, "alert")
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", tgerrors.DuplicateKey("alert id")
}

// CreateAlert 创建告警（status=active），同事务内递增游客告警计数，
// 随后通过信号触发安全分重算与通知推送
func CreateAlert(db *gorm.DB, input CreateAlertInput) (*Alert, error) {
	if input.Type == "" || input.Severity == "" {
		return nil, tgerrors.WithCode(tgerrors.CodeInvalid, "alert type and severity are required")
	}
	tourist, err := GetTourist(db, input.TouristID)
	if err != nil {
		return nil, err
	}

	// 预检查只是减少无谓插入，唯一性最终由唯一索引保证：
	// 并发拿到同一候选号时，落败方换号重试
	var alert *Alert
	for attempt := 0; attempt < alertIDMaxAttempts; attempt++ {
		alertID, err := generateAlertID(db)
		if err != nil {
			return nil, err
		}

		candidate := &Alert{
			AlertID:     alertID,
			TouristID:   tourist.ID,
			DeviceID:    input.DeviceID,
			Type:        input.Type,
			Severity:    input.Severity,
			Status:      AlertStatusActive,
			Title:       input.Title,
			Description: input.Description,
			Location:    input.Location,
			Metadata:    input.Metadata,
			Escalation:  AlertEscalation{Level: 1},
			Timeline: []TimelineEntry{
				newTimelineEntry(TimelineCreated, input.Title, "", map[string]string{
					"source": input.Metadata.Source,
				}),
			},
			LastTransitionAt: time.Now(),
			IsActive:         true,
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(candidate).Error; err != nil {
				return err
			}
			return tx.Model(&Tourist{}).Where("id = ?", tourist.ID).
				Update("alerts_triggered", gorm.Expr("alerts_triggered + 1")).Error
		})
		if err == nil {
			alert = candidate
			break
		}
		if isDuplicateKeyErr(err) {
			continue
		}
		return nil, wrapStoreErr(err, "alert")
	}
	if alert == nil {
		return nil, tgerrors.DuplicateKey("alert id")
	}

	util.Sig().Emit(SigSafetyRecompute, tourist.ID)
	util.Sig().Emit(SigAlertCreated, alert)
	return alert, nil
}

// GetAlert 按告警号获取
func GetAlert(db *gorm.DB, alertID string) (*Alert, error) {
	var alert Alert
	if err := db.Where("alert_id = ?", alertID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tgerrors.NotFound("alert", alertID)
		}
		return nil, wrapStoreErr(err, "alert")
	}
	return &alert, nil
}

func (a *Alert) terminal() bool {
	return a.Status == AlertStatusResolved || a.Status == AlertStatusFalseAlarm
}

// AcknowledgeAlert 确认告警，仅允许 active → acknowledged
func AcknowledgeAlert(db *gorm.DB, actor Actor, alertID, notes string) (*Alert, error) {
	if !actor.IsPrivileged() {
		return nil, tgerrors.Forbidden("only staff may acknowledge an alert")
	}

	unlock := alertLocks.Lock(alertID)
	defer unlock()

	var alert *Alert
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		alert, err = GetAlert(tx, alertID)
		if err != nil {
			return err
		}
		if alert.Status != AlertStatusActive {
			return tgerrors.InvalidTransition(alert.Status, "acknowledge")
		}
		now := time.Now()
		alert.Status = AlertStatusAcknowledged
		alert.Response.AcknowledgedBy = actor.ID
		alert.Response.AcknowledgedAt = &now
		alert.LastTransitionAt = now
		alert.Timeline = append(alert.Timeline,
			newTimelineEntry(TimelineAcknowledged, notes, actor.ID, nil))
		return wrapStoreErr(tx.Save(alert).Error, "alert")
	})
	if err != nil {
		return nil, err
	}

	util.Sig().Emit(SigAlertAcknowledged, alert)
	return alert, nil
}

// ResolveAlert 解决告警，允许 active/acknowledged → resolved
// 上报告警的游客本人不能解决自己的告警
func ResolveAlert(db *gorm.DB, actor Actor, alertID, resolution, notes string) (*Alert, error) {
	return closeAlert(db, actor, alertID, AlertStatusResolved, resolution, notes)
}

// MarkFalseAlarm 标记误报，规则与 resolve 一致
func MarkFalseAlarm(db *gorm.DB, actor Actor, alertID, reason string) (*Alert, error) {
	if reason == "" {
		reason = "marked as false alarm"
	}
	return closeAlert(db, actor, alertID, AlertStatusFalseAlarm, reason, "")
}

func closeAlert(db *gorm.DB, actor Actor, alertID, target, resolution, notes string) (*Alert, error) {
	if !actor.IsPrivileged() {
		return nil, tgerrors.Forbidden("only staff may close an alert")
	}

	unlock := alertLocks.Lock(alertID)
	defer unlock()

	var alert *Alert
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		alert, err = GetAlert(tx, alertID)
		if err != nil {
			return err
		}
		if alert.Status != AlertStatusActive && alert.Status != AlertStatusAcknowledged {
			op := "resolve"
			if target == AlertStatusFalseAlarm {
				op = "false_alarm"
			}
			return tgerrors.InvalidTransition(alert.Status, op)
		}
		now := time.Now()
		alert.Status = target
		alert.Response.ResolvedBy = actor.ID
		alert.Response.ResolvedAt = &now
		alert.Response.Resolution = resolution
		alert.LastTransitionAt = now
		event := TimelineResolved
		if target == AlertStatusFalseAlarm {
			event = TimelineFalseAlarm
		}
		desc := resolution
		if notes != "" {
			desc = resolution + ": " + notes
		}
		alert.Timeline = append(alert.Timeline, newTimelineEntry(event, desc, actor.ID, nil))
		return wrapStoreErr(tx.Save(alert).Error, "alert")
	})
	if err != nil {
		return nil, err
	}

	util.Sig().Emit(SigAlertResolved, alert)
	return alert, nil
}

// AddAlertAction 追加处置动作，任何非终态均可；游客仅限自己的告警
func AddAlertAction(db *gorm.DB, actor Actor, alertID, action, notes string) (*Alert, error) {
	if action == "" {
		return nil, tgerrors.WithCode(tgerrors.CodeInvalid, "action is required")
	}

	unlock := alertLocks.Lock(alertID)
	defer unlock()

	var alert *Alert
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		alert, err = GetAlert(tx, alertID)
		if err != nil {
			return err
		}
		if alert.terminal() {
			return tgerrors.InvalidTransition(alert.Status, "add_action")
		}
		if !actor.IsPrivileged() {
			owner, err := GetTouristByAccount(tx, actor.ID)
			if err != nil || owner.ID != alert.TouristID {
				return tgerrors.Forbidden("tourists may only act on their own alerts")
			}
		}
		now := time.Now()
		alert.Response.Actions = append(alert.Response.Actions, AlertAction{
			Action: action,
			Notes:  notes,
			By:     actor.ID,
			At:     now,
		})
		alert.Timeline = append(alert.Timeline,
			newTimelineEntry(TimelineActionTaken, action, actor.ID, nil))
		return wrapStoreErr(tx.Save(alert).Error, "alert")
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// EscalateAlert 升级告警：level +1，累加 escalatedTo（刻意不去重，留审计），
// 不改变 status 本身
func EscalateAlert(db *gorm.DB, actor Actor, alertID string, escalatedTo []string, reason string) (*Alert, error) {
	if !actor.IsPrivileged() {
		return nil, tgerrors.Forbidden("only staff may escalate an alert")
	}

	unlock := alertLocks.Lock(alertID)
	defer unlock()

	var alert *Alert
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		alert, err = GetAlert(tx, alertID)
		if err != nil {
			return err
		}
		if alert.terminal() {
			return tgerrors.InvalidTransition(alert.Status, "escalate")
		}
		now := time.Now()
		alert.Escalation.Level++
		alert.Escalation.EscalatedAt = &now
		// 重置注意力窗口，避免扫描任务重复升级同一告警
		alert.LastTransitionAt = now
		alert.Escalation.EscalatedTo = append(alert.Escalation.EscalatedTo, escalatedTo...)
		alert.Timeline = append(alert.Timeline,
			newTimelineEntry(TimelineEscalated, reason, actor.ID, map[string]string{
				"level": fmt.Sprintf("%d", alert.Escalation.Level),
			}))
		return wrapStoreErr(tx.Save(alert).Error, "alert")
	})
	if err != nil {
		return nil, err
	}

	util.Sig().Emit(SigAlertEscalated, alert)
	return alert, nil
}

// SoftDeleteAlert 软删除（员工）
func SoftDeleteAlert(db *gorm.DB, actor Actor, alertID string) error {
	if !actor.IsPrivileged() {
		return tgerrors.Forbidden("only staff may delete an alert")
	}
	res := db.Model(&Alert{}).Where("alert_id = ?", alertID).Update("is_active", false)
	if res.Error != nil {
		return wrapStoreErr(res.Error, "alert")
	}
	if res.RowsAffected == 0 {
		return tgerrors.NotFound("alert", alertID)
	}
	return nil
}

// ListAlerts 员工视角列表，可按状态过滤
func ListAlerts(db *gorm.DB, status string, limit int) ([]Alert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := db.Where("is_active = ?", true).Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var alerts []Alert
	if err := q.Find(&alerts).Error; err != nil {
		return nil, wrapStoreErr(err, "alert")
	}
	return alerts, nil
}

// ListTouristAlerts 某游客的告警历史
func ListTouristAlerts(db *gorm.DB, touristID uint, limit int) ([]Alert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var alerts []Alert
	err := db.Where("tourist_id = ? AND is_active = ?", touristID, true).
		Order("created_at DESC").Limit(limit).Find(&alerts).Error
	if err != nil {
		return nil, wrapStoreErr(err, "alert")
	}
	return alerts, nil
}
