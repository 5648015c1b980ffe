package models

import (
	"time"

	"rover-bridge/command"
	"rover-bridge/state"
)

// CommandRecord is one accepted mutation of the control state.
type CommandRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommandID uint64    `gorm:"index" json:"command_id"`
	Command   string    `gorm:"type:text" json:"command"`
	Speed     float64   `json:"speed"`
	Duration  float64   `json:"duration,omitempty"`
	Up        bool      `json:"up"`
	Down      bool      `json:"down"`
	Left      bool      `json:"left"`
	Right     bool      `json:"right"`
	Mode      string    `gorm:"size:16" json:"mode"`
	Timestamp int64     `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCommandRecord builds a journal row from a snapshot.
func NewCommandRecord(snap state.Snapshot, mode string) *CommandRecord {
	return &CommandRecord{
		CommandID: snap.CommandID,
		Command:   snap.Command.String(),
		Speed:     snap.Speed,
		Duration:  snap.Duration,
		Up:        snap.Up,
		Down:      snap.Down,
		Left:      snap.Left,
		Right:     snap.Right,
		Mode:      mode,
		Timestamp: snap.Timestamp,
	}
}

// Snapshot converts the row back into the state it recorded.
func (r *CommandRecord) Snapshot() state.Snapshot {
	return state.Snapshot{
		Directional: command.Directional{Up: r.Up, Down: r.Down, Left: r.Left, Right: r.Right},
		Command:     command.Parse(r.Command),
		Speed:       r.Speed,
		Duration:    r.Duration,
		CommandID:   r.CommandID,
		Timestamp:   r.Timestamp,
	}
}
