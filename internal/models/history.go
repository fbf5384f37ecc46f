package models

import "time"

const (
	FieldStartTime = "startTime"
	FieldEndTime   = "endTime"
	FieldEvents    = "events"
)

// SessionEvent is one event recorded inside a finished session.
type SessionEvent struct {
	EventType string     `json:"eventType"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// HistorySession is a completed session written by the bridge-side recorder.
// Read and delete only.
type HistorySession struct {
	ID        string         `json:"id"`
	StartTime *time.Time     `json:"startTime,omitempty"`
	EndTime   *time.Time     `json:"endTime,omitempty"`
	Events    []SessionEvent `json:"events"`
}

func HistorySessionFromFields(id string, f Fields) HistorySession {
	s := HistorySession{
		ID:        id,
		StartTime: f.OptTime(FieldStartTime),
		EndTime:   f.OptTime(FieldEndTime),
	}
	raw := f.List(FieldEvents)
	s.Events = make([]SessionEvent, 0, len(raw))
	for _, e := range raw {
		s.Events = append(s.Events, SessionEvent{
			EventType: e.String(FieldEventType),
			Timestamp: e.OptTime(FieldTimestamp),
		})
	}
	return s
}

// GroupedSessions is one calendar-day bucket of history.
type GroupedSessions struct {
	Date     string           `json:"date"`
	Sessions []HistorySession `json:"sessions"`
}

// BarChartData is one bar of the weekly stats chart.
type BarChartData struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}
