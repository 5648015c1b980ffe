package command

import (
	"encoding/json"
	"testing"
)

func TestToTank(t *testing.T) {
	tests := []struct {
		cmd         string
		left, right float64
	}{
		{"forward", 0.6, 0.6},
		{"start", 0.6, 0.6},
		{"move", 0.6, 0.6},
		{"back", -0.6, -0.6},
		{"backward", -0.6, -0.6},
		{"left", -0.6, 0.6},
		{"right", 0.6, -0.6},
		{"LEFT", -0.6, 0.6},
		{"stop", 0, 0},
		{"idle", 0, 0},
		{"", 0, 0},
	}
	for _, tt := range tests {
		l, r := ToTank(tt.cmd, 0.6)
		if l != tt.left || r != tt.right {
			t.Errorf("ToTank(%q, 0.6) = (%v, %v), want (%v, %v)", tt.cmd, l, r, tt.left, tt.right)
		}
	}
}

func TestParse(t *testing.T) {
	if c := Parse("forward"); c != Forward || c.IsOverride() {
		t.Errorf("Expected built-in forward, got %+v", c)
	}
	c := Parse("dance")
	if !c.IsOverride() {
		t.Error("Expected unknown token to be an override")
	}
	if c.String() != "dance" {
		t.Errorf("Expected override to keep its text, got %q", c.String())
	}
	if Parse("stop") != Stop {
		t.Error("Expected stop to be recognised")
	}
	if Parse("STOP") == Stop {
		t.Error("Override STOP is not the built-in stop")
	}
	var zero Command
	if zero.String() != "stop" {
		t.Errorf("Zero command should read as stop, got %q", zero.String())
	}
}

func TestCommandJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Command Command `json:"command"`
	}{Left})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"command":"left"}` {
		t.Errorf("Unexpected JSON: %s", data)
	}

	var decoded struct {
		Command Command `json:"command"`
	}
	if err := json.Unmarshal([]byte(`{"command":"spin"}`), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !decoded.Command.IsOverride() || decoded.Command.String() != "spin" {
		t.Errorf("Expected override 'spin', got %+v", decoded.Command)
	}
}

func TestDirectionalPriority(t *testing.T) {
	tests := []struct {
		name  string
		flags Directional
		want  Command
	}{
		{"none", Directional{}, Stop},
		{"up", Directional{Up: true}, Forward},
		{"down", Directional{Down: true}, Back},
		{"left", Directional{Left: true}, Left},
		{"right", Directional{Right: true}, Right},
		{"up beats all", Directional{Up: true, Down: true, Left: true, Right: true}, Forward},
		{"down beats left", Directional{Down: true, Left: true}, Back},
		{"left beats right", Directional{Left: true, Right: true}, Left},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flags.Command(); got != tt.want {
				t.Errorf("Command() = %v, want %v", got, tt.want)
			}
		})
	}
}
