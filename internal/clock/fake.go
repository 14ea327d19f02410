package clock

import (
	"fmt"
	"time"

	"github.com/sweeney/arming-panel/internal/ds3231"
)

// FakeHardware is an in-memory clock chip for tests.
type FakeHardware struct {
	// Current is the chip time returned by Now.
	Current time.Time
	// Lost is the power-loss flag; Adjust clears it.
	Lost bool

	// Alarm1 is the last programmed alarm 1 time.
	Alarm1 time.Time
	// Enabled and Flags are indexed by alarm number (1, 2).
	Enabled [3]bool
	Flags   [3]bool

	Out32K     bool
	SquareWave bool

	// BeginErrors is consumed one per Begin call; a nil entry succeeds.
	// Once exhausted Begin succeeds.
	BeginErrors []error
	BeginCalls  int

	NowError    error
	AdjustError error
	AlarmError  error
	RawError    error

	Adjusted []time.Time
}

// NewFakeHardware returns a chip that has just lost power, with both
// auxiliary outputs on and alarm 2 armed.
func NewFakeHardware() *FakeHardware {
	return &FakeHardware{
		Lost:       true,
		Out32K:     true,
		SquareWave: true,
		Enabled:    [3]bool{false, false, true},
	}
}

func (f *FakeHardware) Begin() error {
	i := f.BeginCalls
	f.BeginCalls++
	if i < len(f.BeginErrors) {
		return f.BeginErrors[i]
	}
	return nil
}

func (f *FakeHardware) Now() (time.Time, error) {
	if f.NowError != nil {
		return time.Time{}, f.NowError
	}
	return f.Current, nil
}

func (f *FakeHardware) Adjust(t time.Time) error {
	if f.AdjustError != nil {
		return f.AdjustError
	}
	f.Current = t
	f.Lost = false
	f.Adjusted = append(f.Adjusted, t)
	return nil
}

func (f *FakeHardware) LostPower() (bool, error) {
	return f.Lost, nil
}

func (f *FakeHardware) SetAlarm1(t time.Time) error {
	if f.AlarmError != nil {
		return f.AlarmError
	}
	f.Alarm1 = t
	f.Enabled[1] = true
	return nil
}

func (f *FakeHardware) AlarmFired(alarm int) (bool, error) {
	if f.AlarmError != nil {
		return false, f.AlarmError
	}
	if alarm < 1 || alarm > 2 {
		return false, fmt.Errorf("alarm %d", alarm)
	}
	return f.Flags[alarm], nil
}

func (f *FakeHardware) ClearAlarm(alarm int) error {
	if alarm < 1 || alarm > 2 {
		return fmt.Errorf("alarm %d", alarm)
	}
	f.Flags[alarm] = false
	return nil
}

func (f *FakeHardware) DisableAlarm(alarm int) error {
	if alarm < 1 || alarm > 2 {
		return fmt.Errorf("alarm %d", alarm)
	}
	f.Enabled[alarm] = false
	return nil
}

func (f *FakeHardware) Disable32K() error {
	f.Out32K = false
	return nil
}

func (f *FakeHardware) DisableSquareWave() error {
	f.SquareWave = false
	return nil
}

// ReadRegisters serves the alarm 1 block in the chip's BCD layout, with
// the A1M4 bit set as SetAlarm1 leaves it on real hardware.
func (f *FakeHardware) ReadRegisters(reg uint8, buf []byte) error {
	if f.RawError != nil {
		return f.RawError
	}
	if reg != ds3231.RegAlarm1 {
		return fmt.Errorf("register 0x%02x not emulated", reg)
	}
	regs := []byte{bcd(f.Alarm1.Second()), bcd(f.Alarm1.Minute()), bcd(f.Alarm1.Hour()), 0x80 | bcd(f.Alarm1.Day())}
	copy(buf, regs)
	return nil
}

// Fire raises the match flag of alarm 1 as the chip would at the alarm time.
func (f *FakeHardware) Fire() {
	f.Flags[1] = true
}

// Advance moves the chip time forward and raises the alarm 1 flag if an
// enabled alarm time of day was crossed.
func (f *FakeHardware) Advance(d time.Duration) {
	from := f.Current
	f.Current = f.Current.Add(d)
	if !f.Enabled[1] {
		return
	}
	for t := from.Truncate(time.Second).Add(time.Second); !t.After(f.Current); t = t.Add(time.Second) {
		if t.Hour() == f.Alarm1.Hour() && t.Minute() == f.Alarm1.Minute() && t.Second() == f.Alarm1.Second() {
			f.Flags[1] = true
			return
		}
	}
}

func bcd(v int) byte {
	return byte(v/10<<4 | v%10)
}
