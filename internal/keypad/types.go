// Package keypad turns a stream of key events and elapsed-time deltas into
// code entry, long-press gestures and config key presses.
// Nothing in this package sleeps or reads the wall clock; time arrives as
// the delta passed to Update.
package keypad

import (
	"fmt"
	"strconv"
)

// Key is a key value encoded as its label minus '0'. Digits are 0..9.
type Key int

// Keys outside the digit range.
const (
	NoKey   Key = -1
	KeyStar Key = '*' - '0'
	KeyHash Key = '#' - '0'
)

// Config mode key meanings, interpreted by the driver.
const (
	ConfigIncHours     Key = 1
	ConfigToggleTarget Key = 2
	ConfigIncMinutes   Key = 3
	ConfigDecHours     Key = 4
	ConfigDecMinutes   Key = 6
	ConfigExitDiscard  Key = 0
	ConfigExitSave         = KeyHash
)

// KeyFromLabel encodes a keymap label.
func KeyFromLabel(r rune) Key {
	return Key(r - '0')
}

// IsDigit reports whether k is 0..9.
func (k Key) IsDigit() bool {
	return k >= 0 && k <= 9
}

func (k Key) String() string {
	switch {
	case k == NoKey:
		return "none"
	case k.IsDigit():
		return strconv.Itoa(int(k))
	default:
		return string(rune(k) + '0')
	}
}

// Mode is the code entry machine state.
type Mode int

const (
	// ModeUnset is the state before the first Init or Idle.
	ModeUnset Mode = iota
	ModeIdle
	ModeWaitingCode
	ModeCodeValid
	ModeConfig
)

func (m Mode) String() string {
	switch m {
	case ModeUnset:
		return "UNSET"
	case ModeIdle:
		return "IDLE"
	case ModeWaitingCode:
		return "WAITING_CODE"
	case ModeCodeValid:
		return "CODE_VALID"
	case ModeConfig:
		return "CONFIG"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// EventKind distinguishes key edges.
type EventKind int

const (
	Pressed EventKind = iota + 1
	Released
)

func (k EventKind) String() string {
	switch k {
	case Pressed:
		return "PRESSED"
	case Released:
		return "RELEASED"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one key edge reported by a Scanner.
type Event struct {
	Kind EventKind
	Key  Key
}

// Scanner is the keypad scan capability.
type Scanner interface {
	// Poll samples the keypad and queues any edges.
	Poll() error
	HasEvent() bool
	// NextEvent dequeues the oldest edge. Only valid when HasEvent is true.
	NextEvent() Event
}

// Keymap4x3 is the label layout of the panel keypad, rows top to bottom.
var Keymap4x3 = [][]rune{
	{'1', '2', '3'},
	{'4', '5', '6'},
	{'7', '8', '9'},
	{'*', '0', '#'},
}

// MaxCodeLength bounds the code buffer.
const MaxCodeLength = 8
