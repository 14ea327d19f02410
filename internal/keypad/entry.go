package keypad

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/arming-panel/internal/logger"
)

// DefaultLongPress is the hold time that makes a press a long press.
const DefaultLongPress = time.Second

// DefaultCode is the factory reference code.
var DefaultCode = []Key{1, 5, 8, 9}

var (
	errCodeLength = errors.New("code length out of range")
	errCodeDigit  = errors.New("code digits must be 0-9")
	errLEDCount   = errors.New("feedback leds must match code length")
)

// Indicator shows entry progress as a level. *led.Bank satisfies it.
type Indicator interface {
	SetLevel(level int) error
	Size() int
}

// Options configures an Entry.
type Options struct {
	// Code is the reference code. Defaults to DefaultCode.
	Code []Key
	// LongPress defaults to DefaultLongPress.
	LongPress time.Duration
}

// Entry is the code entry state machine. It is not safe for concurrent use.
type Entry struct {
	scanner   Scanner
	leds      Indicator
	log       *zap.SugaredLogger
	longPress time.Duration

	reference [MaxCodeLength]Key
	codeLen   int

	mode   Mode
	buffer [MaxCodeLength]Key
	digits int

	held    Key
	heldFor time.Duration

	configKey            Key
	configRequested      bool
	alarmToggleRequested bool
	hourFormatRequested  bool
}

// New creates an Entry in ModeUnset. The driver must call Init or Idle.
func New(scanner Scanner, leds Indicator, opts Options) (*Entry, error) {
	code := opts.Code
	if code == nil {
		code = DefaultCode
	}
	if len(code) == 0 || len(code) > MaxCodeLength {
		return nil, fmt.Errorf("%w: %d", errCodeLength, len(code))
	}
	if leds.Size() != len(code) {
		return nil, fmt.Errorf("%w: %d leds, %d digits", errLEDCount, leds.Size(), len(code))
	}

	e := &Entry{
		scanner:   scanner,
		leds:      leds,
		log:       logger.Named("keypad"),
		longPress: opts.LongPress,
		codeLen:   len(code),
		held:      NoKey,
		configKey: NoKey,
	}
	if e.longPress <= 0 {
		e.longPress = DefaultLongPress
	}
	for i, k := range code {
		if !k.IsDigit() {
			return nil, fmt.Errorf("%w: %v", errCodeDigit, k)
		}
		e.reference[i] = k
	}
	e.clearBuffer()

	return e, nil
}

// Init starts waiting for a code.
func (e *Entry) Init() error {
	return e.changeMode(ModeWaitingCode)
}

// Idle enters the quiescent mode where only long presses count.
func (e *Entry) Idle() error {
	return e.changeMode(ModeIdle)
}

// SetConfigMode starts surfacing fresh presses through ConfigModeKey.
func (e *Entry) SetConfigMode() error {
	return e.changeMode(ModeConfig)
}

// IsFinalValidStatus reports whether the reference code was entered.
func (e *Entry) IsFinalValidStatus() bool {
	return e.mode == ModeCodeValid
}

// IsConfigModeRequested is true on the tick a long * fires in Idle.
func (e *Entry) IsConfigModeRequested() bool {
	return e.configRequested
}

// IsAlarmToggleRequested is true on the tick a long # fires in Idle.
func (e *Entry) IsAlarmToggleRequested() bool {
	return e.alarmToggleRequested
}

// IsHourFormatToggleRequested is true on the tick a long 0 fires in Idle.
func (e *Entry) IsHourFormatToggleRequested() bool {
	return e.hourFormatRequested
}

// ConfigModeKey returns the key freshly pressed this tick in Config, or NoKey.
func (e *Entry) ConfigModeKey() Key {
	return e.configKey
}

// Mode returns the current mode.
func (e *Entry) Mode() Mode {
	return e.mode
}

// Digits returns how many code digits have been entered.
func (e *Entry) Digits() int {
	return e.digits
}

// Code returns a copy of the code buffer; unset slots hold NoKey.
func (e *Entry) Code() []Key {
	return append([]Key(nil), e.buffer[:e.codeLen]...)
}

// CodeLength returns the reference code length.
func (e *Entry) CodeLength() int {
	return e.codeLen
}

// Update polls the scanner once, consumes at most one event and advances the
// machine by elapsed. A scanner error skips the tick; flags from the previous
// tick are still cleared.
func (e *Entry) Update(elapsed time.Duration) error {
	e.configKey = NoKey
	e.configRequested = false
	e.alarmToggleRequested = false
	e.hourFormatRequested = false

	if err := e.scanner.Poll(); err != nil {
		return fmt.Errorf("poll keypad: %w", err)
	}

	ev := Event{Key: NoKey}
	if e.scanner.HasEvent() {
		ev = e.scanner.NextEvent()
	}
	pressed := ev.Kind == Pressed && ev.Key != NoKey
	long := e.track(ev, elapsed)

	switch e.mode {
	case ModeIdle:
		e.configRequested = long && e.held == KeyStar
		e.alarmToggleRequested = long && e.held == KeyHash
		e.hourFormatRequested = long && e.held == 0
		if long {
			e.log.Debugw("long press", "key", e.held)
		}

	case ModeWaitingCode:
		if pressed {
			return e.enter(ev.Key)
		}

	case ModeConfig:
		if pressed {
			e.configKey = ev.Key
		}

	case ModeCodeValid, ModeUnset:
	}
	return nil
}

// track follows the held key and reports whether a long press fired this
// tick. Holding repeats the long press every threshold.
func (e *Entry) track(ev Event, elapsed time.Duration) bool {
	switch ev.Kind {
	case Pressed:
		e.held = ev.Key
		e.heldFor = 0
	case Released:
		e.held = NoKey
		e.heldFor = 0
	default:
		if e.held == NoKey {
			return false
		}
		e.heldFor += elapsed
		if e.heldFor >= e.longPress {
			e.heldFor = 0
			return true
		}
	}
	return false
}

func (e *Entry) enter(k Key) error {
	if e.digits < e.codeLen {
		e.buffer[e.digits] = k
		e.digits++
		return e.setLevel(e.digits)
	}

	// A full buffer only accepts the confirm key.
	if k != KeyHash {
		return nil
	}

	e.digits = 0
	for i := 0; i < e.codeLen; i++ {
		if e.buffer[i] != e.reference[i] {
			e.log.Infow("wrong code")
			return e.changeMode(ModeWaitingCode)
		}
	}
	return e.changeMode(ModeCodeValid)
}

func (e *Entry) changeMode(m Mode) error {
	e.configRequested = false
	e.alarmToggleRequested = false
	e.hourFormatRequested = false

	var err error
	switch m {
	case ModeIdle:
		e.heldFor = 0
		err = e.setLevel(0)
	case ModeWaitingCode:
		e.clearBuffer()
		err = e.setLevel(0)
	case ModeCodeValid:
		err = e.setLevel(e.codeLen)
	case ModeConfig, ModeUnset:
	}

	if e.mode != m {
		e.log.Debugw("mode change", "from", e.mode, "to", m)
	}
	e.mode = m
	return err
}

func (e *Entry) clearBuffer() {
	for i := range e.buffer {
		e.buffer[i] = NoKey
	}
	e.digits = 0
}

func (e *Entry) setLevel(level int) error {
	if err := e.leds.SetLevel(level); err != nil {
		return fmt.Errorf("keypad leds: %w", err)
	}
	return nil
}
