package models

import "time"

// Document field names of system_status/status.
const (
	FieldIsActive         = "is_active"
	FieldIsArmed          = "is_armed"
	FieldLedOn            = "led_on"
	FieldBuzzerOn         = "buzzer_on"
	FieldSessionStartTime = "session_start_time"
	FieldCurrentLimb      = "current_limb"
	FieldSessionID        = "session_id"
)

// SystemStatus is the shared multi-writer status document (last write wins).
type SystemStatus struct {
	IsActive         bool       `json:"is_active"`
	IsArmed          bool       `json:"is_armed"`
	LedOn            bool       `json:"led_on"`
	BuzzerOn         bool       `json:"buzzer_on"`
	SessionStartTime *time.Time `json:"session_start_time,omitempty"`
	CurrentLimb      *string    `json:"current_limb,omitempty"`
	SessionID        *string    `json:"session_id,omitempty"`
}

// SystemStatusFromFields decodes the status document, defaulting every
// missing or malformed field.
func SystemStatusFromFields(f Fields) SystemStatus {
	return SystemStatus{
		IsActive:         f.Bool(FieldIsActive),
		IsArmed:          f.Bool(FieldIsArmed),
		LedOn:            f.Bool(FieldLedOn),
		BuzzerOn:         f.Bool(FieldBuzzerOn),
		SessionStartTime: f.OptTime(FieldSessionStartTime),
		CurrentLimb:      f.OptString(FieldCurrentLimb),
		SessionID:        f.OptString(FieldSessionID),
	}
}
