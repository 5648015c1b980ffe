// Package command resolves raw control intents into canonical commands and
// maps them onto tank-drive motor powers.
package command

import (
	"encoding/json"
	"strings"
)

// Command is a canonical command token. The built-in set is closed; any other
// caller-supplied string is carried verbatim as an override.
type Command struct {
	name     string
	override bool
}

var (
	Stop    = Command{name: "stop"}
	Forward = Command{name: "forward"}
	Back    = Command{name: "back"}
	Left    = Command{name: "left"}
	Right   = Command{name: "right"}
	Move    = Command{name: "move"}
)

var builtin = map[string]Command{
	Stop.name:    Stop,
	Forward.name: Forward,
	Back.name:    Back,
	Left.name:    Left,
	Right.name:   Right,
	Move.name:    Move,
}

// Parse returns the built-in command named s, or an override holding s.
func Parse(s string) Command {
	if c, ok := builtin[s]; ok {
		return c
	}
	return Command{name: s, override: true}
}

func (c Command) String() string {
	if c.name == "" {
		return Stop.name
	}
	return c.name
}

// IsOverride reports whether c is outside the built-in vocabulary.
func (c Command) IsOverride() bool {
	return c.override
}

func (c Command) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Command) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Parse(s)
	return nil
}

// Directional holds the raw directional flags of an intent.
type Directional struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// Command maps the flags to a command by priority up > down > left > right.
func (d Directional) Command() Command {
	switch {
	case d.Up:
		return Forward
	case d.Down:
		return Back
	case d.Left:
		return Left
	case d.Right:
		return Right
	default:
		return Stop
	}
}

// ToTank maps a command and speed onto (left, right) motor powers in [-1, 1].
// Unknown commands, including stop, yield (0, 0).
func ToTank(cmd string, speed float64) (left, right float64) {
	switch strings.ToLower(cmd) {
	case "forward", "start", "move":
		return speed, speed
	case "back", "backward":
		return -speed, -speed
	case "left":
		return -speed, speed
	case "right":
		return speed, -speed
	default:
		return 0, 0
	}
}
