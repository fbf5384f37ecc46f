package models

import "time"

// Document field names of system_status/live_event and of recorded events.
const (
	FieldEventType = "eventType"
	FieldTimestamp = "timestamp"
	FieldAngle     = "angle"
	FieldProgress  = "progress"
	FieldLimb      = "limb"
)

// Event type tags published by the bridge or synthesized for manual actions.
const (
	EventAbruptMotion    = "IMU_ALERTA_BRUSCO"
	EventPIRMotion       = "PIR_MOVIMIENTO"
	EventIMUVertical     = "IMU_VERTICAL"
	EventIMUHorizontal   = "IMU_HORIZONTAL"
	EventLedOnManual     = "LED_ON_MANUAL"
	EventLedOffManual    = "LED_OFF_MANUAL"
	EventBuzzerOnManual  = "BUZZER_ON_MANUAL"
	EventBuzzerOffManual = "BUZZER_OFF_MANUAL"
)

// LiveEvent is the bridge's latest telemetry sample, overwritten in place.
// An empty EventType carries only angle/progress and is not logged.
type LiveEvent struct {
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	Angle     float64   `json:"angle"`
	Progress  int       `json:"progress"`
	Limb      *string   `json:"limb,omitempty"`
}

func LiveEventFromFields(f Fields) LiveEvent {
	ev := LiveEvent{
		EventType: f.String(FieldEventType),
		Angle:     f.Float(FieldAngle),
		Progress:  clampProgress(f.Int(FieldProgress)),
		Limb:      f.OptString(FieldLimb),
	}
	if ts, ok := f.Time(FieldTimestamp); ok {
		ev.Timestamp = ts
	}
	return ev
}

func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// Severity buckets used to color an event row.
const (
	SeverityAlert  = "alert"
	SeverityNormal = "normal"
	SeverityMuted  = "muted"
	SeverityManual = "manual"
)

// EventDescriptor is the presentation of a classified event.
type EventDescriptor struct {
	Icon     string `json:"icon"`
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Emphasis bool   `json:"emphasis"`
}

// LiveEntry is one row of the bounded live-event window.
type LiveEntry struct {
	Event      LiveEvent       `json:"event"`
	Descriptor EventDescriptor `json:"descriptor"`
}

// Gauge is the continuous angle/progress reading.
type Gauge struct {
	Angle    float64 `json:"angle"`
	Progress int     `json:"progress"`
}
