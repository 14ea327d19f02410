package gpio

import "fmt"

// Output is a single claimed output line, such as a buzzer or relay.
type Output struct {
	pins Pins
	line int
	on   bool
}

// NewOutput claims line as an output driven low.
func NewOutput(pins Pins, line int) (*Output, error) {
	if err := pins.ConfigureOutput(line); err != nil {
		return nil, fmt.Errorf("configure output %d: %w", line, err)
	}
	return &Output{pins: pins, line: line}, nil
}

// Set drives the line high when on.
func (o *Output) Set(on bool) error {
	if err := o.pins.Write(o.line, on); err != nil {
		return fmt.Errorf("write output %d: %w", o.line, err)
	}
	o.on = on
	return nil
}

// On returns the last level set.
func (o *Output) On() bool {
	return o.on
}
