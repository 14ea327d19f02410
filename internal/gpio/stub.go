//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPins is not available on non-Linux platforms.
type RealPins struct{}

// NewRealPins returns an error on non-Linux platforms.
func NewRealPins(string) (*RealPins, error) {
	return nil, errUnsupported
}

func (r *RealPins) ConfigureOutput(int) error      { return errUnsupported }
func (r *RealPins) ConfigureInputPullup(int) error { return errUnsupported }
func (r *RealPins) Write(int, bool) error          { return errUnsupported }
func (r *RealPins) Read(int) (bool, error)         { return false, errUnsupported }
func (r *RealPins) Close() error                   { return nil }
