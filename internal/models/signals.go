package models

// 引擎发出的信号。安全分重算、通知推送统一经由信号触发，
// 避免调用点散落导致的状态漂移。
const (
	SigSafetyRecompute = "tourist.safety.recompute" // sender: touristID uint

	SigAlertCreated      = "alert.created"      // sender: *Alert
	SigAlertAcknowledged = "alert.acknowledged" // sender: *Alert
	SigAlertResolved     = "alert.resolved"     // sender: *Alert
	SigAlertEscalated    = "alert.escalated"    // sender: *Alert

	SigVitalsBreach    = "device.vitals.breach" // sender: *Device, params: []VitalBreach
	SigDigitalIDIssued = "digitalid.issued"     // sender: *DigitalIDCard
)
