// Package panel is the driver that ties the clock, the code keypad and the
// two-key switch together into the device behaviour: show the time, edit
// the time and alarm, and ring the alarm until it is disarmed.
//
// The controller owns no goroutines and never sleeps. The caller feeds it
// the wall time and the elapsed delta once per tick.
package panel

import (
	"time"

	"github.com/sweeney/arming-panel/internal/clock"
	"github.com/sweeney/arming-panel/internal/keypad"
	"github.com/sweeney/arming-panel/internal/twokeys"
)

// Mode is the device mode.
type Mode string

const (
	ModeClock   Mode = "CLOCK"
	ModeConfig  Mode = "CONFIG"
	ModeRinging Mode = "RINGING"
)

// Target is what Config mode edits.
type Target string

const (
	TargetClock Target = "CLOCK"
	TargetAlarm Target = "ALARM"
)

// EventType names a device transition worth reporting.
type EventType string

const (
	EventAlarmFired      EventType = "ALARM_FIRED"
	EventCodeAccepted    EventType = "CODE_ACCEPTED"
	EventKeysAccepted    EventType = "KEYS_ACCEPTED"
	EventDisarmed        EventType = "DISARMED"
	EventConfigEntered   EventType = "CONFIG_ENTERED"
	EventConfigSaved     EventType = "CONFIG_SAVED"
	EventConfigDiscarded EventType = "CONFIG_DISCARDED"
	EventAlarmEnabled    EventType = "ALARM_ENABLED"
	EventAlarmDisabled   EventType = "ALARM_DISABLED"
	EventHourFormat      EventType = "HOUR_FORMAT"
)

// Event is a device transition to be published.
type Event struct {
	Timestamp    time.Time
	Type         EventType
	Mode         Mode
	Time         clock.WallTime
	Alarm        clock.AlarmTime
	AlarmEnabled bool
	Hour12       bool
}

// EventCounts tracks the number of each event type since startup.
type EventCounts map[EventType]int

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Mode      Mode
	Counts    EventCounts
}

// State is a point-in-time view of the device.
type State struct {
	Mode         Mode
	Display      string
	Time         clock.WallTime
	Alarm        clock.AlarmTime
	AlarmEnabled bool
	Hour12       bool
	ClockError   bool

	// Config mode only.
	Target Target
	Draft  clock.WallTime

	KeypadMode keypad.Mode
	Digits     int
	ArmingMode twokeys.Mode
	Progress   int
	Buzzer     bool
}

// Clock is the time keeping the controller consumes. *clock.Service
// satisfies it.
type Clock interface {
	Update() error
	Time() clock.WallTime
	ClockError() bool
	SetTime(w clock.WallTime) error
	SetAlarm(a clock.AlarmTime) error
	Alarm() (clock.AlarmTime, error)
	AlarmFired() bool
}

// CodeEntry is the keypad machine. *keypad.Entry satisfies it.
type CodeEntry interface {
	Init() error
	Idle() error
	SetConfigMode() error
	IsFinalValidStatus() bool
	IsConfigModeRequested() bool
	IsAlarmToggleRequested() bool
	IsHourFormatToggleRequested() bool
	ConfigModeKey() keypad.Key
	Update(elapsed time.Duration) error
	Mode() keypad.Mode
	Digits() int
}

// Arming is the two-key machine. *twokeys.Machine satisfies it.
type Arming interface {
	Init() error
	Idle() error
	IsFinalValidStatus() bool
	Update(elapsed time.Duration) error
	Mode() twokeys.Mode
}

// Indicator shows the number of completed disarm stages. *led.Bank
// satisfies it.
type Indicator interface {
	SetLevel(level int) error
	Level() int
}

// Switch drives the buzzer. *gpio.Output satisfies it.
type Switch interface {
	Set(on bool) error
	On() bool
}
