package models

import (
	"testing"

	tgerrors "TourGuard/pkg/errors"
	"TourGuard/pkg/util"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := util.OpenMemoryDatabase()
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func seedTourist(t *testing.T, db *gorm.DB, accountID, passport string) *Tourist {
	t.Helper()
	tourist, err := CreateTourist(db, &Tourist{
		AccountID:      accountID,
		Name:           "Test Tourist",
		PassportNumber: passport,
	})
	require.NoError(t, err)
	return tourist
}

func TestCalculateSafetyScore(t *testing.T) {
	cases := []struct {
		name      string
		riskLevel string
		status    string
		alerts    int
		want      int
	}{
		{"baseline", RiskLow, TouristStatusActive, 0, 100},
		{"medium risk", RiskMedium, TouristStatusActive, 0, 85},
		{"high risk", RiskHigh, TouristStatusActive, 0, 70},
		{"critical risk has no extra deduction", RiskCritical, TouristStatusActive, 0, 100},
		{"missing", RiskLow, TouristStatusMissing, 0, 50},
		{"emergency", RiskLow, TouristStatusEmergency, 0, 20},
		{"alert penalty", RiskLow, TouristStatusActive, 3, 85},
		{"alert penalty capped at 30", RiskLow, TouristStatusActive, 100, 70},
		{"clamped to zero", RiskHigh, TouristStatusEmergency, 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CalculateSafetyScore(tc.riskLevel, tc.status, tc.alerts))
		})
	}
}

func TestCalculateSafetyScoreBounds(t *testing.T) {
	risks := []string{RiskLow, RiskMedium, RiskHigh, RiskCritical}
	statuses := []string{TouristStatusActive, TouristStatusInactive, TouristStatusMissing,
		TouristStatusEmergency, TouristStatusSafe}
	for _, r := range risks {
		for _, s := range statuses {
			for alerts := 0; alerts <= 12; alerts++ {
				score := CalculateSafetyScore(r, s, alerts)
				require.GreaterOrEqual(t, score, 0, "risk=%s status=%s alerts=%d", r, s, alerts)
				require.LessOrEqual(t, score, 100, "risk=%s status=%s alerts=%d", r, s, alerts)
			}
		}
	}
}

func TestRecomputeSafety(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "acc-1", "P100001")
	require.Equal(t, 100, tourist.SafetyScore)

	require.NoError(t, db.Model(&Tourist{}).Where("id = ?", tourist.ID).
		Update("risk_level", RiskHigh).Error)

	score, err := RecomputeSafety(db, tourist.ID)
	require.NoError(t, err)
	require.Equal(t, 70, score)

	stored, err := GetTourist(db, tourist.ID)
	require.NoError(t, err)
	require.Equal(t, 70, stored.SafetyScore)
}

func TestUpdateTouristStatus(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "acc-2", "P100002")
	staff := Actor{ID: "staff-1", Role: RoleResponder}

	updated, err := UpdateTouristStatus(db, staff, tourist.ID, TouristStatusMissing, RiskHigh)
	require.NoError(t, err)
	require.Equal(t, TouristStatusMissing, updated.Status)
	require.Equal(t, RiskHigh, updated.RiskLevel)

	_, err = UpdateTouristStatus(db, Actor{ID: "acc-2", Role: RoleTourist}, tourist.ID, TouristStatusSafe, "")
	require.Error(t, err)
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeForbidden))

	_, err = UpdateTouristStatus(db, staff, tourist.ID, "vanished", "")
	require.Error(t, err)
}

func TestAppendLocation(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "acc-3", "P100003")

	require.NoError(t, AppendLocation(db, tourist.ID, GeoPoint{Latitude: 27.7, Longitude: 85.3}))
	require.NoError(t, AppendLocation(db, tourist.ID, GeoPoint{Latitude: 27.8, Longitude: 85.4}))

	stored, err := GetTourist(db, tourist.ID)
	require.NoError(t, err)
	require.Len(t, stored.LocationHistory, 2)
	require.Equal(t, 27.8, stored.CurrentLocation.Latitude)
	require.False(t, stored.CurrentLocation.Timestamp.IsZero())
}

func TestDeactivateTourist(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "acc-4", "P100004")
	staff := Actor{ID: "staff-1", Role: RoleAdmin}

	require.NoError(t, DeactivateTourist(db, staff, tourist.ID))

	stored, err := GetTourist(db, tourist.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)
	require.Equal(t, TouristStatusInactive, stored.Status)

	err = DeactivateTourist(db, staff, 99999)
	require.Error(t, err)
}
