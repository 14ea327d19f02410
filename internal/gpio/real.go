//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "arming-panel"

// RealPins drives lines on a Linux GPIO character device.
type RealPins struct {
	chip    *gpiocdev.Chip
	lines   map[int]*gpiocdev.Line
	outputs map[int]bool
}

// NewRealPins opens the named gpiochip, e.g. "gpiochip0".
func NewRealPins(chipName string) (*RealPins, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	return &RealPins{
		chip:    chip,
		lines:   make(map[int]*gpiocdev.Line),
		outputs: make(map[int]bool),
	}, nil
}

// ConfigureOutput requests pin as an output, initially low.
func (r *RealPins) ConfigureOutput(pin int) error {
	if line, ok := r.lines[pin]; ok {
		if err := line.Reconfigure(gpiocdev.AsOutput(0)); err != nil {
			return fmt.Errorf("reconfigure pin %d as output: %w", pin, err)
		}
		r.outputs[pin] = true
		return nil
	}

	line, err := r.chip.RequestLine(pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return fmt.Errorf("request output pin %d: %w", pin, err)
	}
	r.lines[pin] = line
	r.outputs[pin] = true
	return nil
}

// ConfigureInputPullup requests pin as an input with pull-up bias.
func (r *RealPins) ConfigureInputPullup(pin int) error {
	if line, ok := r.lines[pin]; ok {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			return fmt.Errorf("reconfigure pin %d as input: %w", pin, err)
		}
		delete(r.outputs, pin)
		return nil
	}

	line, err := r.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return fmt.Errorf("request input pin %d: %w", pin, err)
	}
	r.lines[pin] = line
	return nil
}

// Write drives an output pin.
func (r *RealPins) Write(pin int, high bool) error {
	line, ok := r.lines[pin]
	if !ok || !r.outputs[pin] {
		return fmt.Errorf("pin %d is not an output", pin)
	}

	v := 0
	if high {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Read returns the level of a claimed pin.
func (r *RealPins) Read(pin int) (bool, error) {
	line, ok := r.lines[pin]
	if !ok {
		return false, fmt.Errorf("pin %d is not configured", pin)
	}

	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v == 1, nil
}

// Close drives outputs low and releases every line and the chip.
func (r *RealPins) Close() error {
	var errs []error

	for pin, line := range r.lines {
		if r.outputs[pin] {
			if err := line.SetValue(0); err != nil {
				errs = append(errs, fmt.Errorf("clear pin %d: %w", pin, err))
			}
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	r.lines = make(map[int]*gpiocdev.Line)
	r.outputs = make(map[int]bool)

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
