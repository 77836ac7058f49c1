package models

import (
	"time"

	"gorm.io/gorm"
)

// EscalationPolicy 升级策略：高危告警在注意力窗口内无人处置则自动升级
// 窗口与目标可配置，扫描周期由 cron 表达式决定
type EscalationPolicy struct {
	AttentionWindow time.Duration
	Targets         []string // 升级接收方，默认责任员工频道
}

// DefaultEscalationPolicy 缺省策略
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		AttentionWindow: 15 * time.Minute,
		Targets:         []string{"role:responder"},
	}
}

// FindAlertsNeedingAttention 查找需要关注的告警：
// 仍处于 active/acknowledged、严重度 high/critical、
// 且最近一次状态迁移早于注意力窗口
func FindAlertsNeedingAttention(db *gorm.DB, window time.Duration) ([]Alert, error) {
	cutoff := time.Now().Add(-window)
	var alerts []Alert
	err := db.Where("is_active = ?", true).
		Where("status IN ?", []string{AlertStatusActive, AlertStatusAcknowledged}).
		Where("severity IN ?", []string{SeverityHigh, SeverityCritical}).
		Where("last_transition_at < ?", cutoff).
		Order("last_transition_at ASC").
		Find(&alerts).Error
	if err != nil {
		return nil, wrapStoreErr(err, "alert")
	}
	return alerts, nil
}

// RunEscalationSweep 周期扫描，对命中的告警执行升级，返回升级数量
// 推送失败不影响扫描，单条失败不阻断其余告警
func RunEscalationSweep(db *gorm.DB, policy EscalationPolicy) (int, []error) {
	if policy.AttentionWindow <= 0 {
		policy.AttentionWindow = DefaultEscalationPolicy().AttentionWindow
	}
	if len(policy.Targets) == 0 {
		policy.Targets = DefaultEscalationPolicy().Targets
	}

	candidates, err := FindAlertsNeedingAttention(db, policy.AttentionWindow)
	if err != nil {
		return 0, []error{err}
	}

	var errs []error
	escalated := 0
	actor := SystemActor()
	for _, alert := range candidates {
		_, err := EscalateAlert(db, actor, alert.AlertID, policy.Targets,
			"attention window exceeded without resolution")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		escalated++
	}
	return escalated, errs
}
