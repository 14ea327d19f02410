package gpio

import "fmt"

// Mode records how a fake pin was configured.
type Mode int

const (
	ModeUnclaimed Mode = iota
	ModeOutput
	ModeInputPullup
)

// WriteRecord is one recorded Write call.
type WriteRecord struct {
	Pin  int
	High bool
}

// FakePins is a test double that records writes and returns scripted levels.
type FakePins struct {
	// Modes records the configuration of every claimed pin.
	Modes map[int]Mode

	// Levels holds the current level of each pin. Outputs reflect the last
	// Write; inputs are set by the test. Unset inputs read high (pull-up).
	Levels map[int]bool

	// Writes contains every Write call in order.
	Writes []WriteRecord

	// ReadFunc, if set, overrides Levels for input reads.
	ReadFunc func(pin int) (bool, error)

	// ReadError, if set, will be returned by Read.
	ReadError error

	// WriteError, if set, will be returned by Write.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePins creates an empty FakePins.
func NewFakePins() *FakePins {
	return &FakePins{
		Modes:  make(map[int]Mode),
		Levels: make(map[int]bool),
	}
}

// ConfigureOutput marks pin as an output and drives it low.
func (f *FakePins) ConfigureOutput(pin int) error {
	f.Modes[pin] = ModeOutput
	f.Levels[pin] = false
	return nil
}

// ConfigureInputPullup marks pin as a pulled-up input.
func (f *FakePins) ConfigureInputPullup(pin int) error {
	f.Modes[pin] = ModeInputPullup
	if _, ok := f.Levels[pin]; !ok {
		f.Levels[pin] = true
	}
	return nil
}

// Write records the call and updates the pin level.
func (f *FakePins) Write(pin int, high bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if f.Modes[pin] != ModeOutput {
		return fmt.Errorf("pin %d is not an output", pin)
	}
	f.Writes = append(f.Writes, WriteRecord{Pin: pin, High: high})
	f.Levels[pin] = high
	return nil
}

// Read returns the scripted level of pin.
func (f *FakePins) Read(pin int) (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if f.Modes[pin] == ModeUnclaimed {
		return false, fmt.Errorf("pin %d is not configured", pin)
	}
	if f.ReadFunc != nil && f.Modes[pin] == ModeInputPullup {
		return f.ReadFunc(pin)
	}
	return f.Levels[pin], nil
}

// Set drives an input pin level from the test side.
func (f *FakePins) Set(pin int, high bool) {
	f.Levels[pin] = high
}

// Level returns the current level of pin without going through Read.
func (f *FakePins) Level(pin int) bool {
	return f.Levels[pin]
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.Closed = true
	return nil
}

// ResetWrites clears the write history.
func (f *FakePins) ResetWrites() {
	f.Writes = nil
}
