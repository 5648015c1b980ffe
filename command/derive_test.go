package command

import (
	"errors"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestDeriveOverrideIsVerbatim(t *testing.T) {
	in := Intent{Directional: Directional{Up: true}, Command: ptr("wiggle")}
	d := Derive(in, DefaultOptions())
	if d.Command.String() != "wiggle" || !d.Command.IsOverride() {
		t.Errorf("Expected override 'wiggle', got %v", d.Command)
	}
	if !d.Flags.Up {
		t.Error("Expected flags to be carried through")
	}
}

func TestDeriveEmptyOverrideFallsBackToFlags(t *testing.T) {
	in := Intent{Directional: Directional{Down: true}, Command: ptr("")}
	if d := Derive(in, DefaultOptions()); d.Command != Back {
		t.Errorf("Expected back, got %v", d.Command)
	}
}

func TestDeriveDefaults(t *testing.T) {
	d := Derive(Intent{}, DefaultOptions())
	if d.Command != Stop {
		t.Errorf("Expected stop, got %v", d.Command)
	}
	if d.Speed != DefaultSpeed {
		t.Errorf("Expected default speed %v, got %v", DefaultSpeed, d.Speed)
	}
	if d.Duration != DefaultDuration {
		t.Errorf("Expected default duration %v, got %v", DefaultDuration, d.Duration)
	}
}

func TestDeriveUntimedOmitsDuration(t *testing.T) {
	opts := DefaultOptions()
	opts.Timed = false
	d := Derive(Intent{Duration: ptr(2.0)}, opts)
	if d.Duration != 0 {
		t.Errorf("Expected no duration in untimed mode, got %v", d.Duration)
	}
}

func TestDeriveClamps(t *testing.T) {
	d := Derive(Intent{Speed: ptr(3.0), Duration: ptr(0.0)}, DefaultOptions())
	if d.Speed != 1 {
		t.Errorf("Expected speed clamped to 1, got %v", d.Speed)
	}
	if d.Duration != MinDuration {
		t.Errorf("Expected duration clamped to %v, got %v", MinDuration, d.Duration)
	}
	d = Derive(Intent{Speed: ptr(-1.0), Duration: ptr(60.0)}, DefaultOptions())
	if d.Speed != 0 || d.Duration != MaxDuration {
		t.Errorf("Expected (0, %v), got (%v, %v)", MaxDuration, d.Speed, d.Duration)
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	in := Intent{Directional: Directional{Left: true, Right: true}, Speed: ptr(0.8), Duration: ptr(1.0)}
	first := Derive(in, DefaultOptions())
	for i := 0; i < 100; i++ {
		if got := Derive(in, DefaultOptions()); got != first {
			t.Fatalf("Derive is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestValidateBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		in      Intent
		wantErr string
	}{
		{"speed 0", Intent{Speed: ptr(0.0)}, ""},
		{"speed 1", Intent{Speed: ptr(1.0)}, ""},
		{"speed 1.01", Intent{Speed: ptr(1.01)}, "speed"},
		{"speed negative", Intent{Speed: ptr(-0.1)}, "speed"},
		{"duration 0.05", Intent{Duration: ptr(0.05)}, ""},
		{"duration 5", Intent{Duration: ptr(5.0)}, ""},
		{"duration 0.04", Intent{Duration: ptr(0.04)}, "duration"},
		{"duration 5.01", Intent{Duration: ptr(5.01)}, "duration"},
		{"unset", Intent{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in, true)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantErr {
				t.Errorf("Expected field %q, got %q", tt.wantErr, verr.Field)
			}
		})
	}
}

func TestValidateIgnoresDurationWhenUntimed(t *testing.T) {
	if err := Validate(Intent{Duration: ptr(99.0)}, false); err != nil {
		t.Errorf("Expected duration to be ignored, got %v", err)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "speed", Value: 1.01, Min: 0, Max: 1}
	want := "speed must be within [0, 1], got 1.01"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
