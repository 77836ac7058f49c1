package models

import (
	"regexp"
	"sync"
	"testing"

	tgerrors "TourGuard/pkg/errors"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedAlert(t *testing.T, db *gorm.DB, touristID uint, severity string) *Alert {
	t.Helper()
	alert, err := CreateAlert(db, CreateAlertInput{
		TouristID: touristID,
		Type:      AlertTypeEmergency,
		Severity:  severity,
		Title:     "test alert",
		Location:  GeoPoint{Latitude: 27.7, Longitude: 85.3},
		Metadata:  AlertMetadata{Source: "manual", Confidence: ConfidenceTrigger},
	})
	require.NoError(t, err)
	return alert
}

func TestCreateAlert(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-1", "P300001")

	alert := seedAlert(t, db, tourist.ID, SeverityHigh)

	require.Regexp(t, regexp.MustCompile(`^ALT-\d{4}-\d{6}$`), alert.AlertID)
	require.Equal(t, AlertStatusActive, alert.Status)
	require.Equal(t, 1, alert.Escalation.Level)

	// 时间线首条必须是 created
	require.Len(t, alert.Timeline, 1)
	require.Equal(t, TimelineCreated, alert.Timeline[0].Event)

	stored, err := GetTourist(db, tourist.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.AlertsTriggered)
}

func TestCreateAlertValidation(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-2", "P300002")

	_, err := CreateAlert(db, CreateAlertInput{TouristID: tourist.ID, Type: AlertTypePanic})
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeInvalid))

	_, err = CreateAlert(db, CreateAlertInput{TouristID: 99999, Type: AlertTypePanic, Severity: SeverityHigh})
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeNotFound))
}

func TestAcknowledgeAlert(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-3", "P300003")
	alert := seedAlert(t, db, tourist.ID, SeverityHigh)

	_, err := AcknowledgeAlert(db, Actor{ID: "alert-acc-3", Role: RoleTourist}, alert.AlertID, "")
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeForbidden))

	staff := Actor{ID: "staff-1", Role: RoleResponder}
	acked, err := AcknowledgeAlert(db, staff, alert.AlertID, "on it")
	require.NoError(t, err)
	require.Equal(t, AlertStatusAcknowledged, acked.Status)
	require.Equal(t, "staff-1", acked.Response.AcknowledgedBy)
	require.NotNil(t, acked.Response.AcknowledgedAt)
	require.Len(t, acked.Timeline, 2)
	require.Equal(t, TimelineAcknowledged, acked.Timeline[1].Event)

	// 重复确认被拒
	_, err = AcknowledgeAlert(db, staff, alert.AlertID, "")
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeInvalidTransition))
}

func TestResolveAlert(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-4", "P300004")
	staff := Actor{ID: "staff-1", Role: RoleResponder}

	// active → resolved 直达
	a1 := seedAlert(t, db, tourist.ID, SeverityHigh)
	resolved, err := ResolveAlert(db, staff, a1.AlertID, "tourist located", "")
	require.NoError(t, err)
	require.Equal(t, AlertStatusResolved, resolved.Status)
	require.Equal(t, "tourist located", resolved.Response.Resolution)

	// acknowledged → resolved
	a2 := seedAlert(t, db, tourist.ID, SeverityHigh)
	_, err = AcknowledgeAlert(db, staff, a2.AlertID, "")
	require.NoError(t, err)
	_, err = ResolveAlert(db, staff, a2.AlertID, "handled", "notes")
	require.NoError(t, err)
}

func TestTerminalStatusRejectsTransitions(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-5", "P300005")
	staff := Actor{ID: "staff-1", Role: RoleResponder}
	alert := seedAlert(t, db, tourist.ID, SeverityHigh)

	_, err := ResolveAlert(db, staff, alert.AlertID, "done", "")
	require.NoError(t, err)

	// 终态后一切迁移被拒
	_, err = AcknowledgeAlert(db, staff, alert.AlertID, "")
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeInvalidTransition))
	_, err = ResolveAlert(db, staff, alert.AlertID, "again", "")
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeInvalidTransition))
	_, err = MarkFalseAlarm(db, staff, alert.AlertID, "")
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeInvalidTransition))
	_, err = EscalateAlert(db, staff, alert.AlertID, []string{"role:responder"}, "")
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeInvalidTransition))
	_, err = AddAlertAction(db, staff, alert.AlertID, "call", "")
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeInvalidTransition))
}

func TestMarkFalseAlarm(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-6", "P300006")
	staff := Actor{ID: "staff-1", Role: RoleAdmin}
	alert := seedAlert(t, db, tourist.ID, SeverityMedium)

	marked, err := MarkFalseAlarm(db, staff, alert.AlertID, "drill")
	require.NoError(t, err)
	require.Equal(t, AlertStatusFalseAlarm, marked.Status)
	require.Equal(t, TimelineFalseAlarm, marked.Timeline[len(marked.Timeline)-1].Event)
}

func TestAddAlertActionOwnership(t *testing.T) {
	db := newTestDB(t)
	owner := seedTourist(t, db, "alert-acc-7", "P300007")
	other := seedTourist(t, db, "alert-acc-8", "P300008")
	alert := seedAlert(t, db, owner.ID, SeverityHigh)

	// 游客可以在自己的告警上追加动作
	updated, err := AddAlertAction(db, Actor{ID: "alert-acc-7", Role: RoleTourist}, alert.AlertID, "moved to shelter", "")
	require.NoError(t, err)
	require.Len(t, updated.Response.Actions, 1)
	require.Equal(t, "alert-acc-7", updated.Response.Actions[0].By)

	// 他人的告警不行
	_, err = AddAlertAction(db, Actor{ID: other.AccountID, Role: RoleTourist}, alert.AlertID, "hijack", "")
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeForbidden))
}

func TestEscalateAlertAccumulates(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-9", "P300009")
	staff := Actor{ID: "staff-1", Role: RoleResponder}
	alert := seedAlert(t, db, tourist.ID, SeverityCritical)

	first, err := EscalateAlert(db, staff, alert.AlertID, []string{"role:responder"}, "no response")
	require.NoError(t, err)
	require.Equal(t, 2, first.Escalation.Level)
	require.NotNil(t, first.Escalation.EscalatedAt)

	// 重复目标累加而不去重，保留审计轨迹
	second, err := EscalateAlert(db, staff, alert.AlertID, []string{"role:responder", "ops"}, "still no response")
	require.NoError(t, err)
	require.Equal(t, 3, second.Escalation.Level)
	require.Equal(t, []string{"role:responder", "role:responder", "ops"}, second.Escalation.EscalatedTo)

	// 状态本身不因升级改变
	require.Equal(t, AlertStatusActive, second.Status)
}

func TestConcurrentAcknowledge(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-10", "P300010")
	staff := Actor{ID: "staff-1", Role: RoleResponder}
	alert := seedAlert(t, db, tourist.ID, SeverityHigh)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = AcknowledgeAlert(db, staff, alert.AlertID, "")
		}(i)
	}
	wg.Wait()

	// 恰好一个成功，另一个撞上状态机拒绝
	var ok, rejected int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if tgerrors.IsCode(err, tgerrors.CodeInvalidTransition) {
			rejected++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, rejected)
}

func TestSoftDeleteAlert(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-11", "P300011")
	staff := Actor{ID: "staff-1", Role: RoleAdmin}
	alert := seedAlert(t, db, tourist.ID, SeverityLow)

	require.NoError(t, SoftDeleteAlert(db, staff, alert.AlertID))

	listed, err := ListAlerts(db, "", 0)
	require.NoError(t, err)
	require.Empty(t, listed)

	require.True(t, tgerrors.IsCode(SoftDeleteAlert(db, staff, "ALT-0000-000000"), tgerrors.CodeNotFound))
}

func TestListAlertsFilter(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-12", "P300012")
	staff := Actor{ID: "staff-1", Role: RoleResponder}

	a1 := seedAlert(t, db, tourist.ID, SeverityHigh)
	seedAlert(t, db, tourist.ID, SeverityLow)
	_, err := AcknowledgeAlert(db, staff, a1.AlertID, "")
	require.NoError(t, err)

	acked, err := ListAlerts(db, AlertStatusAcknowledged, 0)
	require.NoError(t, err)
	require.Len(t, acked, 1)

	mine, err := ListTouristAlerts(db, tourist.ID, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
}

func TestDuplicateKeyClassifiedOnInsert(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "alert-acc-13", "P300013")

	first := &Alert{
		AlertID:   "ALT-2026-777777",
		TouristID: tourist.ID,
		Type:      AlertTypePanic,
		Severity:  SeverityHigh,
		Status:    AlertStatusActive,
		IsActive:  true,
	}
	require.NoError(t, db.Create(first).Error)

	// 预检查之后仍可能有并发插入撞号，唯一索引的报错必须被识别出来
	second := &Alert{
		AlertID:   "ALT-2026-777777",
		TouristID: tourist.ID,
		Type:      AlertTypePanic,
		Severity:  SeverityHigh,
		Status:    AlertStatusActive,
		IsActive:  true,
	}
	err := db.Create(second).Error
	require.Error(t, err)
	require.True(t, isDuplicateKeyErr(err))
	require.False(t, isDuplicateKeyErr(nil))
}
