package models

import "time"

const FieldCommand = "command"

// Calibration commands accepted by the bridge.
const (
	CommandCalibInit  = "CALIB_INIT"
	CommandCalibFinal = "CALIB_FINAL"
)

// Command is the single-slot outbound command document. No acknowledgement.
type Command struct {
	Command   string    `json:"command"`
	Timestamp time.Time `json:"timestamp"`
}

func (c Command) Fields() Fields {
	return Fields{FieldCommand: c.Command, FieldTimestamp: c.Timestamp}
}

func CommandFromFields(f Fields) Command {
	c := Command{Command: f.String(FieldCommand)}
	if ts, ok := f.Time(FieldTimestamp); ok {
		c.Timestamp = ts
	}
	return c
}

// ValidCommand reports whether kind is a known calibration command.
func ValidCommand(kind string) bool {
	return kind == CommandCalibInit || kind == CommandCalibFinal
}
