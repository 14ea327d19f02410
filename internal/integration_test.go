package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/arming-panel/internal/clock"
	"github.com/sweeney/arming-panel/internal/ds3231"
	"github.com/sweeney/arming-panel/internal/gpio"
	"github.com/sweeney/arming-panel/internal/keypad"
	"github.com/sweeney/arming-panel/internal/led"
	"github.com/sweeney/arming-panel/internal/mqtt"
	"github.com/sweeney/arming-panel/internal/panel"
	"github.com/sweeney/arming-panel/internal/status"
	"github.com/sweeney/arming-panel/internal/twokeys"
)

const (
	pollInterval = 10 * time.Millisecond
	leftKey      = 24
	rightKey     = 21
	buzzerLine   = 11
)

var startTime = time.Date(2026, 10, 18, 9, 30, 15, 0, time.UTC)

// device is the whole panel wired over the in-memory clock registers and
// fake GPIO, driven the way the daemon loop drives it.
type device struct {
	t         *testing.T
	bus       *ds3231.MemBus
	pins      *gpio.FakePins
	scanner   *keypad.FakeScanner
	ctl       *panel.Controller
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	now       time.Time
}

func newDevice(t *testing.T) *device {
	t.Helper()
	d := &device{
		t:         t,
		bus:       ds3231.NewMemBus(),
		pins:      gpio.NewFakePins(),
		scanner:   keypad.NewFakeScanner(),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(startTime, status.Config{PollMs: pollInterval.Milliseconds()}),
		now:       startTime,
	}

	clk := clock.New(ds3231.New(d.bus), clock.Options{Seed: func() time.Time { return startTime }})
	clk.Begin()

	keyLEDs, err := led.NewBank(d.pins, []int{17, 27, 22, 23})
	require.NoError(t, err)
	entry, err := keypad.New(d.scanner, keyLEDs, keypad.Options{})
	require.NoError(t, err)
	arming, err := twokeys.New(d.pins, twokeys.Lines{Left: leftKey, LeftLED: 25, Right: rightKey, RightLED: 26}, twokeys.Options{})
	require.NoError(t, err)
	progress, err := led.NewBank(d.pins, []int{4, 18})
	require.NoError(t, err)
	buzzer, err := gpio.NewOutput(d.pins, buzzerLine)
	require.NoError(t, err)

	d.ctl = panel.New(panel.Components{
		Clock:    clk,
		Keypad:   entry,
		Arming:   arming,
		Progress: progress,
		Buzzer:   buzzer,
	}, panel.Options{})
	d.ctl.Start(d.now)
	return d
}

// tick runs one loop iteration: advance, publish, update the tracker.
func (d *device) tick() {
	d.now = d.now.Add(pollInterval)
	for _, event := range d.ctl.Tick(d.now, pollInterval) {
		require.NoError(d.t, d.publisher.Publish(event))
	}
	d.tracker.Update(d.ctl.State(), d.ctl.Counts())
}

func (d *device) ticks(n int) {
	for i := 0; i < n; i++ {
		d.tick()
	}
}

func (d *device) tap(keys ...keypad.Key) {
	for _, k := range keys {
		d.scanner.Press(k)
		d.tick()
		d.scanner.Release(k)
		d.tick()
	}
}

// hold presses k for dur of ticks after the press tick, then releases it.
func (d *device) hold(k keypad.Key, dur time.Duration) {
	d.scanner.Press(k)
	d.ticks(int(dur/pollInterval) + 1)
	d.scanner.Release(k)
	d.tick()
}

func (d *device) turn(line int, on bool) {
	d.pins.Set(line, !on)
}

func (d *device) json() status.StatusInner {
	var sj status.StatusJSON
	require.NoError(d.t, json.Unmarshal(status.FormatJSON(d.tracker.Snapshot()), &sj))
	return sj.Status
}

// TestIntegrationAlarmCycle programs an alarm through the keypad, lets the
// chip fire it and disarms it with the code and both keys.
func TestIntegrationAlarmCycle(t *testing.T) {
	d := newDevice(t)
	d.tick()
	require.Equal(t, "09:30", d.json().Display)

	// Program the alarm to 07:05.
	d.hold(keypad.KeyStar, time.Second)
	require.Equal(t, "CONFIG", d.json().Mode)
	d.tap(keypad.ConfigToggleTarget)
	for i := 0; i < 7; i++ {
		d.tap(keypad.ConfigIncHours)
	}
	for i := 0; i < 5; i++ {
		d.tap(keypad.ConfigIncMinutes)
	}
	edit := d.json().Edit
	require.NotNil(t, edit)
	require.Equal(t, status.EditJSON{Target: "ALARM", Value: "07:05"}, *edit)
	d.tap(keypad.ConfigExitSave)

	s := d.json()
	require.Equal(t, "CLOCK", s.Mode)
	require.Equal(t, status.AlarmJSON{Time: "07:05", Enabled: true}, s.Alarm)

	// The chip holds the alarm: minutes then hours in BCD after seconds.
	require.Equal(t, byte(0x05), d.bus.Regs[ds3231.RegAlarm1+1]&0x7f)
	require.Equal(t, byte(0x07), d.bus.Regs[ds3231.RegAlarm1+2]&0x3f)

	// Alarm time reached.
	d.bus.FireAlarm(1)
	d.tick()
	s = d.json()
	require.Equal(t, "RINGING", s.Mode)
	require.True(t, s.Arming.Buzzer)
	require.True(t, d.pins.Level(buzzerLine))

	// A wrong code is rejected and the keypad waits again.
	d.tap(1, 2, 3, 4, keypad.KeyHash)
	require.Equal(t, "WAITING_CODE", d.json().Keypad.Mode)

	d.tap(1, 5, 8, 9, keypad.KeyHash)
	s = d.json()
	require.Equal(t, "CODE_VALID", s.Keypad.Mode)
	require.Equal(t, 1, s.Arming.Progress)

	d.turn(rightKey, true)
	d.tick()
	d.turn(leftKey, true)
	d.tick()

	s = d.json()
	require.Equal(t, "CLOCK", s.Mode)
	require.False(t, s.Arming.Buzzer)
	require.Zero(t, s.Arming.Progress)
	require.False(t, d.pins.Level(buzzerLine))

	require.Equal(t, []panel.EventType{
		panel.EventConfigEntered,
		panel.EventConfigSaved,
		panel.EventAlarmFired,
		panel.EventCodeAccepted,
		panel.EventKeysAccepted,
		panel.EventDisarmed,
	}, d.publisher.EventTypes())
	require.Equal(t, 1, s.Counts["DISARMED"])

	var fired mqtt.Payload
	require.NoError(t, json.Unmarshal(d.publisher.Payloads[2], &fired))
	require.Equal(t, "07:05", fired.Panel.Alarm)
	require.Equal(t, "RINGING", fired.Panel.Mode)
}

// TestIntegrationSetTime sets the clock through the keypad and reads it back
// from the chip registers.
func TestIntegrationSetTime(t *testing.T) {
	d := newDevice(t)

	d.hold(keypad.KeyStar, time.Second)
	d.tap(keypad.ConfigDecHours, keypad.ConfigDecMinutes, keypad.ConfigDecMinutes)
	d.tap(keypad.ConfigExitSave)

	require.Equal(t, "08:28", d.json().Display)
	require.Equal(t, byte(0x28), d.bus.Regs[ds3231.RegTimeDate+1])
	require.Equal(t, byte(0x08), d.bus.Regs[ds3231.RegTimeDate+2]&0x3f)
}

// TestIntegrationDisabledAlarm toggles the alarm off with a long # and checks
// a chip match is swallowed.
func TestIntegrationDisabledAlarm(t *testing.T) {
	d := newDevice(t)

	d.hold(keypad.KeyHash, time.Second)
	require.False(t, d.json().Alarm.Enabled)

	d.bus.FireAlarm(1)
	d.ticks(5)

	require.Equal(t, "CLOCK", d.json().Mode)
	require.False(t, d.pins.Level(buzzerLine))
	require.Equal(t, []panel.EventType{panel.EventAlarmDisabled}, d.publisher.EventTypes())
}

// TestIntegrationHourFormat switches the display to 12 hour with a long 0.
func TestIntegrationHourFormat(t *testing.T) {
	d := newDevice(t)

	d.hold(0, time.Second)

	s := d.json()
	require.Equal(t, "12h", s.HourFormat)
	require.Equal(t, "9:30 AM", s.Display)
}
