// Package gpio provides discrete digital I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Pins is the discrete digital I/O capability consumed by the panel.
// Levels are electrical: true = high.
type Pins interface {
	// ConfigureOutput claims pin as an output driven low.
	ConfigureOutput(pin int) error

	// ConfigureInputPullup claims pin as an input with the internal pull-up enabled.
	ConfigureInputPullup(pin int) error

	// Write drives an output pin.
	Write(pin int, high bool) error

	// Read returns the level of a configured pin.
	Read(pin int) (bool, error)

	// Close releases all claimed lines.
	Close() error
}

// DefaultChip is the gpiochip the Raspberry Pi header is exposed on.
const DefaultChip = "gpiochip0"
