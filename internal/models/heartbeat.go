package models

import "time"

const FieldLastSeen = "last_seen"

// Heartbeat is written periodically by the bridge; read-only here.
type Heartbeat struct {
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

func HeartbeatFromFields(f Fields) Heartbeat {
	return Heartbeat{LastSeen: f.OptTime(FieldLastSeen)}
}
