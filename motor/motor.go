// Package motor drives the two tank-drive motors.
package motor

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Actuator converts normalized (left, right) powers in [-1, 1] into motor
// signals. The sign is the direction, the magnitude the speed fraction.
type Actuator interface {
	Drive(left, right float64) error
	Stop() error
}

// Epsilon is the power below which a side is treated as stopped.
const Epsilon = 1e-3

// PWM is the subset of a PWM controller the tank driver needs.
type PWM interface {
	// SetDutyCycle sets a channel's duty cycle in percent (0-100).
	SetDutyCycle(channel int, percent int) error
	// SetLevel drives a channel fully high or fully low.
	SetLevel(channel int, high bool) error
}

// Channels maps one H-bridge side onto PWM channels.
type Channels struct {
	PWM, IN1, IN2 int
}

// Waveshare Motor Driver HAT channel layout.
var (
	LeftChannels  = Channels{PWM: 0, IN1: 1, IN2: 2}
	RightChannels = Channels{PWM: 5, IN1: 3, IN2: 4}
)

// TankDriver drives two H-bridge channels from one PWM controller.
type TankDriver struct {
	mu    sync.Mutex
	pwm   PWM
	left  Channels
	right Channels
}

// NewTankDriver returns a driver using the Waveshare channel layout.
func NewTankDriver(pwm PWM) *TankDriver {
	return &TankDriver{pwm: pwm, left: LeftChannels, right: RightChannels}
}

// Drive implements Actuator.
func (d *TankDriver) Drive(left, right float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.side(d.left, left); err != nil {
		return fmt.Errorf("left motor: %w", err)
	}
	if err := d.side(d.right, right); err != nil {
		return fmt.Errorf("right motor: %w", err)
	}
	return nil
}

// Stop implements Actuator.
func (d *TankDriver) Stop() error {
	return d.Drive(0, 0)
}

func (d *TankDriver) side(ch Channels, v float64) error {
	if math.Abs(v) < Epsilon {
		return d.pwm.SetDutyCycle(ch.PWM, 0)
	}
	percent := int(math.Min(math.Abs(v), 1) * 100)
	if err := d.pwm.SetDutyCycle(ch.PWM, percent); err != nil {
		return err
	}
	forward := v > 0
	if err := d.pwm.SetLevel(ch.IN1, !forward); err != nil {
		return err
	}
	return d.pwm.SetLevel(ch.IN2, forward)
}

// LogActuator stands in for hardware and only logs what it would do.
type LogActuator struct {
	logger *slog.Logger
}

// NewLogActuator returns an Actuator that logs calls.
func NewLogActuator(logger *slog.Logger) *LogActuator {
	return &LogActuator{logger: logger.With("component", "motor", "driver", "log")}
}

func (a *LogActuator) Drive(left, right float64) error {
	a.logger.Info("Drive", "left", left, "right", right)
	return nil
}

func (a *LogActuator) Stop() error {
	a.logger.Info("Stop")
	return nil
}
