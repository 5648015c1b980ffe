//go:build linux

package i2c

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ioctl request that binds the file descriptor to a slave address.
const i2cSlave = 0x0703

// Device is one slave on an I2C bus.
type Device struct {
	mu   sync.Mutex
	file *os.File
	addr uint16
}

// Open binds to addr on the given bus number.
func Open(bus int, addr uint16) (*Device, error) {
	path := DevicePath(bus)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, int(addr)); err != nil {
		f.Close()
		return nil, fmt.Errorf("set i2c slave address %#x: %w", addr, err)
	}
	return &Device{file: f, addr: addr}, nil
}

// WriteReg writes one byte to a register.
func (d *Device) WriteReg(reg, value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.file.Write([]byte{reg, value}); err != nil {
		return fmt.Errorf("i2c write reg %#x: %w", reg, err)
	}
	return nil
}

// ReadReg reads one byte from a register.
func (d *Device) ReadReg(reg byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.file.Write([]byte{reg}); err != nil {
		return 0, fmt.Errorf("i2c select reg %#x: %w", reg, err)
	}
	buf := make([]byte, 1)
	if _, err := d.file.Read(buf); err != nil {
		return 0, fmt.Errorf("i2c read reg %#x: %w", reg, err)
	}
	return buf[0], nil
}

// Close releases the device file.
func (d *Device) Close() error {
	return d.file.Close()
}
