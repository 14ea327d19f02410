// Package twokeys implements dual authorization: two switches must both be
// turned within a short window of each other.
//
// Switch lines are active low with pull-ups. Time arrives as the elapsed
// delta passed to Update.
package twokeys

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/arming-panel/internal/gpio"
	"github.com/sweeney/arming-panel/internal/logger"
)

// Defaults for Options.
const (
	DefaultResetInterval = 250 * time.Millisecond
	DefaultWindow        = 250 * time.Millisecond
)

var errSharedLine = errors.New("switch and indicator lines must be distinct")

// Mode is the arming machine state.
type Mode int

const (
	// ModeUnset is the state before the first Init or Idle.
	ModeUnset Mode = iota
	// ModeReset waits for both switches to stay off for the reset interval.
	ModeReset
	ModeIdle
	ModeOff
	ModeOneActivated
	ModeTwoActivated
)

func (m Mode) String() string {
	switch m {
	case ModeUnset:
		return "UNSET"
	case ModeReset:
		return "RESET"
	case ModeIdle:
		return "IDLE"
	case ModeOff:
		return "OFF"
	case ModeOneActivated:
		return "ONE_ACTIVATED"
	case ModeTwoActivated:
		return "TWO_ACTIVATED"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Lines are the GPIO lines of the two switches and their indicators.
type Lines struct {
	Left     int
	LeftLED  int
	Right    int
	RightLED int
}

// Options tunes the timing windows.
type Options struct {
	// ResetInterval is how long both switches must stay off to leave Reset.
	ResetInterval time.Duration
	// Window is the time allowed between the first and second switch.
	Window time.Duration
}

// Machine is the dual-key arming state machine. It is not safe for
// concurrent use.
type Machine struct {
	pins  gpio.Pins
	lines Lines
	opts  Options
	log   *zap.SugaredLogger

	mode        Mode
	accumulated time.Duration
}

// New claims the switch and indicator lines. The machine starts in
// ModeUnset; the driver must call Init or Idle.
func New(pins gpio.Pins, lines Lines, opts Options) (*Machine, error) {
	seen := map[int]bool{}
	for _, l := range []int{lines.Left, lines.LeftLED, lines.Right, lines.RightLED} {
		if seen[l] {
			return nil, fmt.Errorf("%w: line %d", errSharedLine, l)
		}
		seen[l] = true
	}

	if opts.ResetInterval <= 0 {
		opts.ResetInterval = DefaultResetInterval
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}

	for _, l := range []int{lines.Left, lines.Right} {
		if err := pins.ConfigureInputPullup(l); err != nil {
			return nil, fmt.Errorf("configure switch %d: %w", l, err)
		}
	}
	for _, l := range []int{lines.LeftLED, lines.RightLED} {
		if err := pins.ConfigureOutput(l); err != nil {
			return nil, fmt.Errorf("configure indicator %d: %w", l, err)
		}
	}

	return &Machine{
		pins:  pins,
		lines: lines,
		opts:  opts,
		log:   logger.Named("twokeys"),
	}, nil
}

// Init starts a new arming attempt. A switch already on, or unreadable,
// forces Reset.
func (m *Machine) Init() error {
	left, right, err := m.read()
	if err != nil {
		if cerr := m.changeMode(ModeReset); cerr != nil {
			return errors.Join(err, cerr)
		}
		return err
	}
	if left || right {
		return m.changeMode(ModeReset)
	}
	return m.changeMode(ModeOff)
}

// Idle parks the machine with both indicators off.
func (m *Machine) Idle() error {
	return m.changeMode(ModeIdle)
}

// IsFinalValidStatus reports whether both switches were turned in time.
func (m *Machine) IsFinalValidStatus() bool {
	return m.mode == ModeTwoActivated
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Update samples both switches and advances the machine by elapsed.
// A read error skips the tick.
func (m *Machine) Update(elapsed time.Duration) error {
	switch m.mode {
	case ModeReset:
		left, right, err := m.read()
		if err != nil {
			return err
		}
		if left || right {
			m.accumulated = 0
			return nil
		}
		m.accumulated += elapsed
		if m.accumulated >= m.opts.ResetInterval {
			return m.changeMode(ModeOff)
		}

	case ModeOff:
		left, right, err := m.read()
		if err != nil {
			return err
		}
		switch {
		case left:
			if err := m.pins.Write(m.lines.LeftLED, true); err != nil {
				return fmt.Errorf("left indicator: %w", err)
			}
			return m.changeMode(ModeOneActivated)
		case right:
			if err := m.pins.Write(m.lines.RightLED, true); err != nil {
				return fmt.Errorf("right indicator: %w", err)
			}
			return m.changeMode(ModeOneActivated)
		}

	case ModeOneActivated:
		left, right, err := m.read()
		if err != nil {
			return err
		}
		m.accumulated += elapsed
		switch {
		case m.accumulated >= m.opts.Window:
			m.log.Infow("second key too late", "after", m.accumulated)
			return m.changeMode(ModeReset)
		case !left && !right:
			return m.changeMode(ModeOff)
		case left && right:
			return m.changeMode(ModeTwoActivated)
		}

	case ModeUnset, ModeIdle, ModeTwoActivated:
	}
	return nil
}

// read returns whether each switch is on.
func (m *Machine) read() (left, right bool, err error) {
	l, err := m.pins.Read(m.lines.Left)
	if err != nil {
		return false, false, fmt.Errorf("read left switch: %w", err)
	}
	r, err := m.pins.Read(m.lines.Right)
	if err != nil {
		return false, false, fmt.Errorf("read right switch: %w", err)
	}
	return !l, !r, nil
}

func (m *Machine) changeMode(mode Mode) error {
	var err error
	switch mode {
	case ModeReset:
		m.accumulated = 0
		err = m.setIndicators(false)
	case ModeIdle, ModeOff:
		err = m.setIndicators(false)
	case ModeOneActivated:
		m.accumulated = 0
	case ModeTwoActivated:
		err = m.setIndicators(true)
	case ModeUnset:
	}

	if m.mode != mode {
		m.log.Debugw("mode change", "from", m.mode, "to", mode)
	}
	m.mode = mode
	return err
}

func (m *Machine) setIndicators(on bool) error {
	if err := m.pins.Write(m.lines.LeftLED, on); err != nil {
		return fmt.Errorf("left indicator: %w", err)
	}
	if err := m.pins.Write(m.lines.RightLED, on); err != nil {
		return fmt.Errorf("right indicator: %w", err)
	}
	return nil
}
