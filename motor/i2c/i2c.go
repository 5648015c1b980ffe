// Package i2c exposes a Linux i2c-dev character device as a register bus.
package i2c

import (
	"fmt"
)

// DevicePath returns the character device for an I2C bus number.
func DevicePath(bus int) string {
	return fmt.Sprintf("/dev/i2c-%d", bus)
}
