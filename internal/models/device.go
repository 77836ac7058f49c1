package models

import (
	"errors"
	"fmt"
	"time"

	tgerrors "TourGuard/pkg/errors"
	"TourGuard/pkg/util"

	"gorm.io/gorm"
)

// 设备状态
const (
	DeviceStatusActive      = "active"
	DeviceStatusInactive    = "inactive"
	DeviceStatusWarning     = "warning"
	DeviceStatusOffline     = "offline"
	DeviceStatusMaintenance = "maintenance"
)

// 设备侧显式触发类型
const (
	TriggerPanicButton  = "panicButtonPressed"
	TriggerFallDetected = "fallDetected"
	TriggerLowBattery   = "lowBattery"
	TriggerTampered     = "tampered"
	TriggerOffline      = "deviceOffline"
)

// 体征阈值，数值口径不可改动
const (
	heartRateHigh     = 100
	heartRateLow      = 60
	heartRateSevHigh  = 120
	heartRateSevLow   = 50
	temperatureHigh   = 38
	temperatureLow    = 35
	temperatureSevHi  = 39
	temperatureSevLow = 34
)

// 告警置信度：体征推断 90，设备显式触发 95
const (
	ConfidenceVitals  = 90
	ConfidenceTrigger = 95
)

// Vitals 体征采样。指针字段缺省表示未上报，缺省不算越界
type Vitals struct {
	HeartRate   *float64  `json:"heartRate,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Steps       *int      `json:"steps,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// DeviceAlertFlags 设备级活动状况标志。由阈值评估置位，只能显式清除
type DeviceAlertFlags struct {
	PanicButtonPressed  bool `json:"panicButtonPressed"`
	FallDetected        bool `json:"fallDetected"`
	AbnormalHeartRate   bool `json:"abnormalHeartRate"`
	AbnormalTemperature bool `json:"abnormalTemperature"`
	LowBattery          bool `json:"lowBattery"`
	Tampered            bool `json:"tampered"`
}

// Device IoT 穿戴设备，至多绑定一位游客
type Device struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	SerialNumber string `json:"serialNumber" gorm:"uniqueIndex;size:64"`
	TouristID    *uint  `json:"touristId,omitempty" gorm:"index"`

	Vitals Vitals           `json:"vitals" gorm:"serializer:json"`
	Flags  DeviceAlertFlags `json:"alerts" gorm:"serializer:json;column:alerts"`

	BatteryLevel   int    `json:"batteryLevel"`
	SignalStrength int    `json:"signalStrength"`
	Status         string `json:"status" gorm:"size:16;default:active"`

	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

// VitalBreach 一次阈值越界判定
type VitalBreach struct {
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	Reason     string `json:"reason"`
	Flag       string `json:"flag"`
	Confidence int    `json:"confidence"`
}

// EvaluateVitals 纯函数：判定体征采样是否越界
// 心率 >100 或 <60 触发 medical；>120 或 <50 提升为 high
// 体温 >38 或 <35 触发 medical；>39 或 <34 提升为 high
// 未上报的字段不参与判定
func EvaluateVitals(v Vitals) []VitalBreach {
	var breaches []VitalBreach

	if v.HeartRate != nil {
		hr := *v.HeartRate
		if hr > heartRateHigh || hr < heartRateLow {
			severity := SeverityMedium
			if hr > heartRateSevHigh || hr < heartRateSevLow {
				severity = SeverityHigh
			}
			breaches = append(breaches, VitalBreach{
				Type:       AlertTypeMedical,
				Severity:   severity,
				Reason:     fmt.Sprintf("heart rate %.0f bpm outside safe range", hr),
				Flag:       "abnormalHeartRate",
				Confidence: ConfidenceVitals,
			})
		}
	}

	if v.Temperature != nil {
		temp := *v.Temperature
		if temp > temperatureHigh || temp < temperatureLow {
			severity := SeverityMedium
			if temp > temperatureSevHi || temp < temperatureSevLow {
				severity = SeverityHigh
			}
			breaches = append(breaches, VitalBreach{
				Type:       AlertTypeMedical,
				Severity:   severity,
				Reason:     fmt.Sprintf("body temperature %.1f°C outside safe range", temp),
				Flag:       "abnormalTemperature",
				Confidence: ConfidenceVitals,
			})
		}
	}

	return breaches
}

// EvaluateTrigger 纯函数：设备显式触发的判定
// panic / fall 为 critical，其余已知触发为 medium
func EvaluateTrigger(trigger string) (VitalBreach, error) {
	switch trigger {
	case TriggerPanicButton:
		return VitalBreach{
			Type: AlertTypePanic, Severity: SeverityCritical,
			Reason: "panic button pressed", Flag: "panicButtonPressed",
			Confidence: ConfidenceTrigger,
		}, nil
	case TriggerFallDetected:
		return VitalBreach{
			Type: AlertTypeMedical, Severity: SeverityCritical,
			Reason: "fall detected", Flag: "fallDetected",
			Confidence: ConfidenceTrigger,
		}, nil
	case TriggerLowBattery:
		return VitalBreach{
			Type: AlertTypeDevice, Severity: SeverityMedium,
			Reason: "battery level critically low", Flag: "lowBattery",
			Confidence: ConfidenceTrigger,
		}, nil
	case TriggerTampered:
		return VitalBreach{
			Type: AlertTypeSecurity, Severity: SeverityMedium,
			Reason: "device tampering detected", Flag: "tampered",
			Confidence: ConfidenceTrigger,
		}, nil
	case TriggerOffline:
		return VitalBreach{
			Type: AlertTypeDevice, Severity: SeverityMedium,
			Reason: "device went offline", Flag: "",
			Confidence: ConfidenceTrigger,
		}, nil
	}
	return VitalBreach{}, tgerrors.WithCodef(tgerrors.CodeInvalid, "unknown device trigger %q", trigger)
}

func (f *DeviceAlertFlags) set(flag string) {
	switch flag {
	case "panicButtonPressed":
		f.PanicButtonPressed = true
	case "fallDetected":
		f.FallDetected = true
	case "abnormalHeartRate":
		f.AbnormalHeartRate = true
	case "abnormalTemperature":
		f.AbnormalTemperature = true
	case "lowBattery":
		f.LowBattery = true
	case "tampered":
		f.Tampered = true
	}
}

// Any 是否存在置位的标志
func (f DeviceAlertFlags) Any() bool {
	return f.PanicButtonPressed || f.FallDetected || f.AbnormalHeartRate ||
		f.AbnormalTemperature || f.LowBattery || f.Tampered
}

// deviceLocks 同一设备的遥测处理串行化，跨设备并行
var deviceLocks = util.NewKeyedMutex()

// TelemetrySample 一次遥测上报
type TelemetrySample struct {
	HeartRate      *float64  `json:"heartRate,omitempty"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Steps          *int      `json:"steps,omitempty"`
	BatteryLevel   *int      `json:"batteryLevel,omitempty"`
	SignalStrength *int      `json:"signalStrength,omitempty"`
	Location       *GeoPoint `json:"location,omitempty"`
	Triggers       []string  `json:"triggers,omitempty"` // 设备显式触发
}

// TelemetryResult 遥测处理结果
type TelemetryResult struct {
	Device   *Device       `json:"device"`
	Breaches []VitalBreach `json:"breaches,omitempty"`
	Alerts   []*Alert      `json:"alerts,omitempty"`
}

// IngestTelemetry 遥测入口：更新设备/位置，评估阈值，
// 置位设备标志并为每个越界创建告警（metadata.source=device）
func IngestTelemetry(db *gorm.DB, serialNumber string, sample TelemetrySample) (*TelemetryResult, error) {
	unlock := deviceLocks.Lock(serialNumber)
	defer unlock()

	device, err := GetDevice(db, serialNumber)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	vitals := Vitals{
		HeartRate:   sample.HeartRate,
		Temperature: sample.Temperature,
		Steps:       sample.Steps,
		RecordedAt:  now,
	}
	device.Vitals = vitals
	device.LastSeenAt = &now
	if sample.BatteryLevel != nil {
		device.BatteryLevel = *sample.BatteryLevel
	}
	if sample.SignalStrength != nil {
		device.SignalStrength = *sample.SignalStrength
	}

	breaches := EvaluateVitals(vitals)
	for _, trigger := range sample.Triggers {
		breach, err := EvaluateTrigger(trigger)
		if err != nil {
			return nil, err
		}
		breaches = append(breaches, breach)
	}

	for _, breach := range breaches {
		device.Flags.set(breach.Flag)
	}
	if len(breaches) > 0 {
		device.Status = DeviceStatusWarning
	}

	if err := db.Save(device).Error; err != nil {
		return nil, wrapStoreErr(err, "device")
	}

	result := &TelemetryResult{Device: device, Breaches: breaches}

	// 未绑定游客的设备只记录体征，不产生告警
	if device.TouristID == nil {
		return result, nil
	}

	if sample.Location != nil {
		if err := AppendLocation(db, *device.TouristID, *sample.Location); err != nil {
			return nil, err
		}
	}

	var location GeoPoint
	if sample.Location != nil {
		location = *sample.Location
	}
	for _, breach := range breaches {
		alert, err := CreateAlert(db, CreateAlertInput{
			TouristID:   *device.TouristID,
			DeviceID:    &device.ID,
			Type:        breach.Type,
			Severity:    breach.Severity,
			Title:       breach.Reason,
			Description: fmt.Sprintf("device %s: %s", device.SerialNumber, breach.Reason),
			Location:    location,
			Metadata: AlertMetadata{
				Source:     "device",
				Confidence: breach.Confidence,
				Trigger:    breach.Flag,
			},
		})
		if err != nil {
			return nil, err
		}
		result.Alerts = append(result.Alerts, alert)
	}

	if len(breaches) > 0 {
		util.Sig().Emit(SigVitalsBreach, device, breaches)
	}
	return result, nil
}

// RegisterDevice 注册设备并可选绑定游客
func RegisterDevice(db *gorm.DB, device *Device) (*Device, error) {
	if device.SerialNumber == "" {
		return nil, tgerrors.WithCode(tgerrors.CodeInvalid, "device serial number is required")
	}
	if device.Status == "" {
		device.Status = DeviceStatusActive
	}
	if device.TouristID != nil {
		if _, err := GetTourist(db, *device.TouristID); err != nil {
			return nil, err
		}
	}
	if err := db.Create(device).Error; err != nil {
		return nil, wrapStoreErr(err, "device")
	}
	return device, nil
}

// GetDevice 按序列号获取设备
func GetDevice(db *gorm.DB, serialNumber string) (*Device, error) {
	var device Device
	if err := db.Where("serial_number = ?", serialNumber).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tgerrors.NotFound("device", serialNumber)
		}
		return nil, wrapStoreErr(err, "device")
	}
	return &device, nil
}

// BindDevice 绑定设备到游客（一台设备至多一位游客）
func BindDevice(db *gorm.DB, actor Actor, serialNumber string, touristID uint) (*Device, error) {
	if !actor.IsPrivileged() {
		return nil, tgerrors.Forbidden("only staff may bind a device")
	}
	device, err := GetDevice(db, serialNumber)
	if err != nil {
		return nil, err
	}
	if _, err := GetTourist(db, touristID); err != nil {
		return nil, err
	}
	device.TouristID = &touristID
	if err := db.Save(device).Error; err != nil {
		return nil, wrapStoreErr(err, "device")
	}
	return device, nil
}

// ClearDeviceFlags 显式清除设备标志（标志不会自动复位）
func ClearDeviceFlags(db *gorm.DB, actor Actor, serialNumber string) (*Device, error) {
	if !actor.IsPrivileged() {
		return nil, tgerrors.Forbidden("only staff may clear device flags")
	}

	unlock := deviceLocks.Lock(serialNumber)
	defer unlock()

	device, err := GetDevice(db, serialNumber)
	if err != nil {
		return nil, err
	}
	device.Flags = DeviceAlertFlags{}
	if device.Status == DeviceStatusWarning {
		device.Status = DeviceStatusActive
	}
	if err := db.Save(device).Error; err != nil {
		return nil, wrapStoreErr(err, "device")
	}
	return device, nil
}
