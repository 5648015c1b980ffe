//go:build !linux

package i2c

import (
	"errors"
)

// Device is unavailable outside Linux.
type Device struct{}

// Open always fails on platforms without i2c-dev.
func Open(bus int, addr uint16) (*Device, error) {
	return nil, errors.New("i2c: only supported on linux")
}

func (d *Device) WriteReg(reg, value byte) error { return errors.New("i2c: unsupported") }
func (d *Device) ReadReg(reg byte) (byte, error) { return 0, errors.New("i2c: unsupported") }
func (d *Device) Close() error                   { return nil }
