// Package led drives a bank of indicator LEDs as a level meter.
package led

import (
	"fmt"

	"github.com/sweeney/arming-panel/internal/gpio"
)

// Bank is an ordered set of LED output lines. Level n lights the first n.
type Bank struct {
	pins  gpio.Pins
	lines []int
	level int
}

// NewBank claims lines as outputs and leaves them all off.
func NewBank(pins gpio.Pins, lines []int) (*Bank, error) {
	b := &Bank{
		pins:  pins,
		lines: append([]int(nil), lines...),
	}

	for _, l := range b.lines {
		if err := pins.ConfigureOutput(l); err != nil {
			return nil, fmt.Errorf("configure led %d: %w", l, err)
		}
	}

	if err := b.Init(); err != nil {
		return nil, err
	}
	return b, nil
}

// SetLevel lights LEDs with index < level and turns the rest off.
// Out-of-range levels saturate.
func (b *Bank) SetLevel(level int) error {
	if level < 0 {
		level = 0
	}
	if level > len(b.lines) {
		level = len(b.lines)
	}
	b.level = level

	for i, l := range b.lines {
		if err := b.pins.Write(l, i < level); err != nil {
			return fmt.Errorf("set led %d: %w", l, err)
		}
	}
	return nil
}

// Init drives every LED low.
func (b *Bank) Init() error {
	return b.SetLevel(0)
}

// Level returns the last level applied.
func (b *Bank) Level() int {
	return b.level
}

// Size returns the number of LEDs in the bank.
func (b *Bank) Size() int {
	return len(b.lines)
}
