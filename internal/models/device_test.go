package models

import (
	"testing"
	"time"

	tgerrors "TourGuard/pkg/errors"

	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestEvaluateVitalsHeartRate(t *testing.T) {
	cases := []struct {
		name     string
		hr       float64
		severity string
	}{
		{"above threshold", 105, SeverityMedium},
		{"severely above", 125, SeverityHigh},
		{"below threshold", 55, SeverityMedium},
		{"severely below", 45, SeverityHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			breaches := EvaluateVitals(Vitals{HeartRate: fptr(tc.hr), RecordedAt: time.Now()})
			require.Len(t, breaches, 1)
			require.Equal(t, AlertTypeMedical, breaches[0].Type)
			require.Equal(t, tc.severity, breaches[0].Severity)
			require.Equal(t, "abnormalHeartRate", breaches[0].Flag)
			require.Equal(t, ConfidenceVitals, breaches[0].Confidence)
		})
	}

	require.Empty(t, EvaluateVitals(Vitals{HeartRate: fptr(75)}))
}

func TestEvaluateVitalsTemperature(t *testing.T) {
	cases := []struct {
		name     string
		temp     float64
		severity string
	}{
		{"fever", 38.5, SeverityMedium},
		{"high fever", 39.5, SeverityHigh},
		{"hypothermia", 34.5, SeverityMedium},
		{"severe hypothermia", 33.5, SeverityHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			breaches := EvaluateVitals(Vitals{Temperature: fptr(tc.temp)})
			require.Len(t, breaches, 1)
			require.Equal(t, tc.severity, breaches[0].Severity)
			require.Equal(t, "abnormalTemperature", breaches[0].Flag)
		})
	}

	require.Empty(t, EvaluateVitals(Vitals{Temperature: fptr(36.6)}))
}

func TestEvaluateVitalsAbsentFields(t *testing.T) {
	// 未上报的字段不参与判定
	require.Empty(t, EvaluateVitals(Vitals{}))
	require.Empty(t, EvaluateVitals(Vitals{Steps: iptr(12000)}))
}

func TestEvaluateVitalsCombined(t *testing.T) {
	breaches := EvaluateVitals(Vitals{HeartRate: fptr(130), Temperature: fptr(39.2)})
	require.Len(t, breaches, 2)
}

func TestEvaluateTrigger(t *testing.T) {
	panicBreach, err := EvaluateTrigger(TriggerPanicButton)
	require.NoError(t, err)
	require.Equal(t, AlertTypePanic, panicBreach.Type)
	require.Equal(t, SeverityCritical, panicBreach.Severity)
	require.Equal(t, ConfidenceTrigger, panicBreach.Confidence)

	fall, err := EvaluateTrigger(TriggerFallDetected)
	require.NoError(t, err)
	require.Equal(t, AlertTypeMedical, fall.Type)
	require.Equal(t, SeverityCritical, fall.Severity)

	battery, err := EvaluateTrigger(TriggerLowBattery)
	require.NoError(t, err)
	require.Equal(t, SeverityMedium, battery.Severity)

	_, err = EvaluateTrigger("selfDestruct")
	require.Error(t, err)
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeInvalid))
}

func TestIngestTelemetryBoundDevice(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "dev-acc-1", "P200001")
	device, err := RegisterDevice(db, &Device{SerialNumber: "SN-1001", TouristID: &tourist.ID})
	require.NoError(t, err)

	result, err := IngestTelemetry(db, device.SerialNumber, TelemetrySample{
		HeartRate:    fptr(130),
		BatteryLevel: iptr(80),
		Location:     &GeoPoint{Latitude: 27.7, Longitude: 85.3},
		Triggers:     []string{TriggerPanicButton},
	})
	require.NoError(t, err)
	require.Len(t, result.Breaches, 2)
	require.Len(t, result.Alerts, 2)

	stored, err := GetDevice(db, device.SerialNumber)
	require.NoError(t, err)
	require.True(t, stored.Flags.AbnormalHeartRate)
	require.True(t, stored.Flags.PanicButtonPressed)
	require.Equal(t, DeviceStatusWarning, stored.Status)
	require.Equal(t, 80, stored.BatteryLevel)
	require.NotNil(t, stored.LastSeenAt)

	// 位置同步到游客档案
	owner, err := GetTourist(db, tourist.ID)
	require.NoError(t, err)
	require.Equal(t, 27.7, owner.CurrentLocation.Latitude)
	require.Equal(t, 2, owner.AlertsTriggered)

	for _, alert := range result.Alerts {
		require.Equal(t, "device", alert.Metadata.Source)
		require.Equal(t, AlertStatusActive, alert.Status)
	}
}

func TestIngestTelemetryUnboundDevice(t *testing.T) {
	db := newTestDB(t)
	_, err := RegisterDevice(db, &Device{SerialNumber: "SN-2001"})
	require.NoError(t, err)

	// 未绑定游客的设备只记录体征，不产生告警
	result, err := IngestTelemetry(db, "SN-2001", TelemetrySample{HeartRate: fptr(140)})
	require.NoError(t, err)
	require.Len(t, result.Breaches, 1)
	require.Empty(t, result.Alerts)

	stored, err := GetDevice(db, "SN-2001")
	require.NoError(t, err)
	require.True(t, stored.Flags.AbnormalHeartRate)
}

func TestIngestTelemetryNormalSample(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "dev-acc-2", "P200002")
	_, err := RegisterDevice(db, &Device{SerialNumber: "SN-3001", TouristID: &tourist.ID})
	require.NoError(t, err)

	result, err := IngestTelemetry(db, "SN-3001", TelemetrySample{
		HeartRate:   fptr(72),
		Temperature: fptr(36.8),
	})
	require.NoError(t, err)
	require.Empty(t, result.Breaches)
	require.Empty(t, result.Alerts)
	require.Equal(t, DeviceStatusActive, result.Device.Status)
}

func TestClearDeviceFlags(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "dev-acc-3", "P200003")
	_, err := RegisterDevice(db, &Device{SerialNumber: "SN-4001", TouristID: &tourist.ID})
	require.NoError(t, err)

	_, err = IngestTelemetry(db, "SN-4001", TelemetrySample{HeartRate: fptr(130)})
	require.NoError(t, err)

	// 标志不会自动复位，即便后续采样恢复正常
	_, err = IngestTelemetry(db, "SN-4001", TelemetrySample{HeartRate: fptr(72)})
	require.NoError(t, err)
	stored, err := GetDevice(db, "SN-4001")
	require.NoError(t, err)
	require.True(t, stored.Flags.AbnormalHeartRate)

	_, err = ClearDeviceFlags(db, Actor{ID: "t", Role: RoleTourist}, "SN-4001")
	require.Error(t, err)

	cleared, err := ClearDeviceFlags(db, Actor{ID: "staff-1", Role: RoleResponder}, "SN-4001")
	require.NoError(t, err)
	require.False(t, cleared.Flags.Any())
	require.Equal(t, DeviceStatusActive, cleared.Status)
}

func TestBindDevice(t *testing.T) {
	db := newTestDB(t)
	tourist := seedTourist(t, db, "dev-acc-4", "P200004")
	_, err := RegisterDevice(db, &Device{SerialNumber: "SN-5001"})
	require.NoError(t, err)

	staff := Actor{ID: "staff-1", Role: RoleResponder}
	device, err := BindDevice(db, staff, "SN-5001", tourist.ID)
	require.NoError(t, err)
	require.Equal(t, tourist.ID, *device.TouristID)

	_, err = BindDevice(db, staff, "SN-5001", 99999)
	require.Error(t, err)
	require.True(t, tgerrors.IsCode(err, tgerrors.CodeNotFound))
}
