//go:build !linux

package ds3231

import "errors"

var errUnsupported = errors.New("ds3231: i2c-dev requires Linux")

// LinuxBus is not available on non-Linux platforms.
type LinuxBus struct{}

// OpenLinuxBus returns an error on non-Linux platforms.
func OpenLinuxBus(string) (*LinuxBus, error) {
	return nil, errUnsupported
}

func (b *LinuxBus) ReadRegister(uint8, uint8, []byte) error  { return errUnsupported }
func (b *LinuxBus) WriteRegister(uint8, uint8, []byte) error { return errUnsupported }
func (b *LinuxBus) Close() error                             { return nil }
