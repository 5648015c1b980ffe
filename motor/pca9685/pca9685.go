// Package pca9685 drives the PCA9685 16-channel, 12-bit PWM controller.
package pca9685

import (
	"fmt"
	"math"
	"time"
)

// DefaultAddress is the chip's I2C address with all address pins low.
const DefaultAddress = 0x40

const (
	regMode1    = 0x00
	regPrescale = 0xFE
	regLED0OnL  = 0x06

	mode1Sleep   = 0x10
	mode1Restart = 0x80

	oscillatorHz = 25_000_000.0
	resolution   = 4096
	maxCount     = resolution - 1
	channels     = 16
)

// Bus is a register-level connection to one I2C device.
type Bus interface {
	WriteReg(reg, value byte) error
	ReadReg(reg byte) (byte, error)
}

// Device is a PCA9685 on a Bus. It implements motor.PWM.
type Device struct {
	bus   Bus
	sleep func(time.Duration)
}

// New resets the chip's MODE1 register and returns the device.
func New(bus Bus) (*Device, error) {
	d := &Device{bus: bus, sleep: time.Sleep}
	if err := bus.WriteReg(regMode1, 0x00); err != nil {
		return nil, fmt.Errorf("pca9685 reset: %w", err)
	}
	return d, nil
}

// SetPWMFreq sets the output frequency for all channels.
func (d *Device) SetPWMFreq(hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("pca9685: invalid frequency %v", hz)
	}
	prescale := byte(math.Floor(oscillatorHz/resolution/hz - 1 + 0.5))

	oldMode, err := d.bus.ReadReg(regMode1)
	if err != nil {
		return fmt.Errorf("pca9685 read mode1: %w", err)
	}
	// The prescaler can only be written while the oscillator is asleep.
	steps := []struct{ reg, val byte }{
		{regMode1, (oldMode & 0x7F) | mode1Sleep},
		{regPrescale, prescale},
		{regMode1, oldMode},
	}
	for _, s := range steps {
		if err := d.bus.WriteReg(s.reg, s.val); err != nil {
			return fmt.Errorf("pca9685 set frequency: %w", err)
		}
	}
	d.sleep(5 * time.Millisecond)
	if err := d.bus.WriteReg(regMode1, oldMode|mode1Restart); err != nil {
		return fmt.Errorf("pca9685 restart: %w", err)
	}
	return nil
}

// SetPWM sets the on and off counts (0-4095) of one channel.
func (d *Device) SetPWM(channel int, on, off uint16) error {
	if channel < 0 || channel >= channels {
		return fmt.Errorf("pca9685: channel %d out of range", channel)
	}
	base := byte(regLED0OnL + 4*channel)
	regs := [4]byte{byte(on), byte(on >> 8), byte(off), byte(off >> 8)}
	for i, v := range regs {
		if err := d.bus.WriteReg(base+byte(i), v); err != nil {
			return fmt.Errorf("pca9685 channel %d: %w", channel, err)
		}
	}
	return nil
}

// SetDutyCycle sets a channel's duty cycle in percent.
func (d *Device) SetDutyCycle(channel, percent int) error {
	if percent < 0 {
		percent = 0
	}
	off := int(float64(percent) * (resolution / 100.0))
	if off > maxCount {
		off = maxCount
	}
	return d.SetPWM(channel, 0, uint16(off))
}

// SetLevel drives a channel fully high or low.
func (d *Device) SetLevel(channel int, high bool) error {
	if high {
		return d.SetPWM(channel, 0, maxCount)
	}
	return d.SetPWM(channel, 0, 0)
}
