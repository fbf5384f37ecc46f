package rehab_monitor

import (
	"fmt"
	"strings"
)

// Collections and document ids shared with the bridge.
const (
	CollectionSystemStatus = "system_status"
	CollectionCommands     = "system_commands"
	CollectionHistory      = "history"
	CollectionSessions     = "sessions"

	DocStatus    = "status"
	DocHeartbeat = "bridge_heartbeat"
	DocLiveEvent = "live_event"
	DocCommand   = "command"
)

// DocPath addresses a single document as collection/id.
type DocPath struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func (p DocPath) String() string {
	return p.Collection + "/" + p.ID
}

// Valid reports whether both segments are set and free of separators.
func (p DocPath) Valid() bool {
	return validSegment(p.Collection) && validSegment(p.ID)
}

var (
	StatusPath    = DocPath{Collection: CollectionSystemStatus, ID: DocStatus}
	HeartbeatPath = DocPath{Collection: CollectionSystemStatus, ID: DocHeartbeat}
	LiveEventPath = DocPath{Collection: CollectionSystemStatus, ID: DocLiveEvent}
	CommandPath   = DocPath{Collection: CollectionCommands, ID: DocCommand}
)

// HistoryPath returns history/{sessionID}.
func HistoryPath(sessionID string) DocPath {
	return DocPath{Collection: CollectionHistory, ID: sessionID}
}

// SessionPath returns sessions/{sessionID}.
func SessionPath(sessionID string) DocPath {
	return DocPath{Collection: CollectionSessions, ID: sessionID}
}

// ParseDocPath parses "collection/id".
func ParseDocPath(s string) (DocPath, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) != 2 {
		return DocPath{}, fmt.Errorf("invalid document path %q: want collection/id", s)
	}
	p := DocPath{Collection: parts[0], ID: parts[1]}
	if !p.Valid() {
		return DocPath{}, fmt.Errorf("invalid document path %q", s)
	}
	return p, nil
}

func validSegment(s string) bool {
	return s != "" && strings.TrimSpace(s) == s && !strings.ContainsAny(s, "/*?[]")
}
