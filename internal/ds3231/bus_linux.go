//go:build linux

package ds3231

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE ioctl from linux/i2c-dev.h.
const i2cSlave = 0x0703

// LinuxBus talks to an I2C adapter through /dev/i2c-N.
type LinuxBus struct {
	mu   sync.Mutex
	fd   int
	addr int
}

// OpenLinuxBus opens an i2c-dev node, e.g. "/dev/i2c-1".
func OpenLinuxBus(path string) (*LinuxBus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &LinuxBus{fd: fd, addr: -1}, nil
}

func (b *LinuxBus) selectAddr(addr uint8) error {
	if b.addr == int(addr) {
		return nil
	}
	if err := unix.IoctlSetInt(b.fd, i2cSlave, int(addr)); err != nil {
		return fmt.Errorf("select i2c address 0x%02x: %w", addr, err)
	}
	b.addr = int(addr)
	return nil
}

// ReadRegister writes the register pointer then reads len(buf) bytes.
func (b *LinuxBus) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.selectAddr(addr); err != nil {
		return err
	}
	if _, err := unix.Write(b.fd, []byte{reg}); err != nil {
		return fmt.Errorf("set register 0x%02x: %w", reg, err)
	}
	n, err := unix.Read(b.fd, buf)
	if err != nil {
		return fmt.Errorf("read register 0x%02x: %w", reg, err)
	}
	if n != len(buf) {
		return fmt.Errorf("read register 0x%02x: short read %d/%d", reg, n, len(buf))
	}
	return nil
}

// WriteRegister writes buf starting at reg in one transaction.
func (b *LinuxBus) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.selectAddr(addr); err != nil {
		return err
	}
	msg := make([]byte, 0, len(buf)+1)
	msg = append(msg, reg)
	msg = append(msg, buf...)
	n, err := unix.Write(b.fd, msg)
	if err != nil {
		return fmt.Errorf("write register 0x%02x: %w", reg, err)
	}
	if n != len(msg) {
		return fmt.Errorf("write register 0x%02x: short write %d/%d", reg, n, len(msg))
	}
	return nil
}

// Close releases the device node.
func (b *LinuxBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return unix.Close(b.fd)
}
