package models

// HomeState is the combined live view published to clients.
type HomeState struct {
	IsActive        bool        `json:"is_active"`
	IsArmed         bool        `json:"is_armed"`
	LedOn           bool        `json:"led_on"`
	BuzzerOn        bool        `json:"buzzer_on"`
	CurrentLimb     *string     `json:"current_limb,omitempty"`
	SessionID       *string     `json:"session_id,omitempty"`
	IsBridgeOnline  bool        `json:"is_bridge_online"`
	SessionDuration string      `json:"session_duration"`
	LiveEvents      []LiveEntry `json:"live_events"`
	CurrentAngle    float64     `json:"current_angle"`
	CurrentProgress int         `json:"current_progress"`
}
