package command

import (
	"fmt"
	"math"
)

// Bounds for speed and duration. Both ends are inclusive.
const (
	MinSpeed    = 0.0
	MaxSpeed    = 1.0
	MinDuration = 0.05
	MaxDuration = 5.0

	DefaultSpeed    = 0.6
	DefaultDuration = 0.6
)

// Intent is a raw control request as received from a client.
type Intent struct {
	Directional
	Command  *string  `json:"command"`
	Speed    *float64 `json:"speed"`
	Duration *float64 `json:"duration"`
}

// Options configure Derive for a deployment mode.
type Options struct {
	// Timed enables the duration field; untimed modes always derive 0.
	Timed           bool
	DefaultSpeed    float64
	DefaultDuration float64
}

// DefaultOptions returns timed options with the stock defaults.
func DefaultOptions() Options {
	return Options{
		Timed:           true,
		DefaultSpeed:    DefaultSpeed,
		DefaultDuration: DefaultDuration,
	}
}

// Derived is the canonical form of an Intent.
type Derived struct {
	Flags    Directional
	Command  Command
	Speed    float64
	Duration float64
}

// ValidationError reports an input outside its declared range.
type ValidationError struct {
	Field    string
	Value    float64
	Min, Max float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must be within [%g, %g], got %g", e.Field, e.Min, e.Max, e.Value)
}

// Validate rejects out-of-range speed or duration before any state is touched.
// Duration is only checked when timed is true.
func Validate(in Intent, timed bool) error {
	if in.Speed != nil {
		if err := checkRange("speed", *in.Speed, MinSpeed, MaxSpeed); err != nil {
			return err
		}
	}
	if timed && in.Duration != nil {
		if err := checkRange("duration", *in.Duration, MinDuration, MaxDuration); err != nil {
			return err
		}
	}
	return nil
}

func checkRange(field string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return &ValidationError{Field: field, Value: v, Min: lo, Max: hi}
	}
	return nil
}

// Derive resolves an intent into a canonical command with clamped speed and
// duration. It has no side effects.
func Derive(in Intent, opts Options) Derived {
	d := Derived{Flags: in.Directional}

	if in.Command != nil && *in.Command != "" {
		d.Command = Parse(*in.Command)
	} else {
		d.Command = in.Directional.Command()
	}

	d.Speed = clamp(valueOr(in.Speed, opts.DefaultSpeed), MinSpeed, MaxSpeed)
	if opts.Timed {
		d.Duration = clamp(valueOr(in.Duration, opts.DefaultDuration), MinDuration, MaxDuration)
	}
	return d
}

func valueOr(p *float64, def float64) float64 {
	if p == nil || math.IsNaN(*p) {
		return def
	}
	return *p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
