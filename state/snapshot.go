package state

import (
	"rover-bridge/command"
)

// Snapshot is an immutable copy of the control state. Its JSON form is also
// the persisted file layout.
type Snapshot struct {
	command.Directional
	Command   command.Command `json:"command"`
	Speed     float64         `json:"speed"`
	Duration  float64         `json:"duration,omitempty"`
	CommandID uint64          `json:"command_id"`
	Timestamp int64           `json:"timestamp"`
}

// Initial returns the start-of-process state for the given options.
func Initial(opts command.Options) Snapshot {
	s := Snapshot{
		Command: command.Stop,
		Speed:   opts.DefaultSpeed,
	}
	if opts.Timed {
		s.Duration = opts.DefaultDuration
	}
	return s
}
