// Package ds3231 drives a Maxim DS3231 real-time clock over I2C.
// Datasheet: https://datasheets.maximintegrated.com/en/ds/DS3231.pdf
//
// Only the features the panel needs are implemented: time keeping,
// oscillator-stop detection, alarm 1 with hour/minute/second match,
// alarm flags, and the 32 kHz / square-wave output switches.
package ds3231

import (
	"fmt"
	"time"
)

// Address is the fixed I2C address of the chip.
const Address = 0x68

// Register map.
const (
	RegTimeDate = 0x00
	RegAlarm1   = 0x07
	RegControl  = 0x0E
	RegStatus   = 0x0F

	// RegCount is the size of the register file.
	RegCount = 0x13
)

// Control register bits.
const (
	ctrlA1IE  = 1 << 0
	ctrlA2IE  = 1 << 1
	ctrlINTCN = 1 << 2
	ctrlRS1   = 1 << 3
	ctrlRS2   = 1 << 4
	ctrlEOSC  = 1 << 7
)

// Status register bits.
const (
	statA1F     = 1 << 0
	statA2F     = 1 << 1
	statEN32kHz = 1 << 3
	statOSF     = 1 << 7
)

// alarmMask is the AxMy "ignore this field" bit on alarm registers.
const alarmMask = 0x80

// Bus is a register-oriented I2C transport.
type Bus interface {
	ReadRegister(addr uint8, reg uint8, buf []byte) error
	WriteRegister(addr uint8, reg uint8, buf []byte) error
}

// Status classifies driver errors.
type Status int

const (
	FailedToConfigureClock Status = iota + 1
	FailedToReadClock
	FailedWriteToClock
	InvalidAlarm
)

// StatusErr is returned by Device methods.
type StatusErr struct {
	Status Status
	Err    error
}

func (e StatusErr) Error() string {
	var op string
	switch e.Status {
	case FailedToConfigureClock:
		op = "configure clock"
	case FailedToReadClock:
		op = "read clock"
	case FailedWriteToClock:
		op = "write clock"
	case InvalidAlarm:
		op = "invalid alarm"
	default:
		op = "ds3231"
	}
	if e.Err == nil {
		return op
	}
	return op + ": " + e.Err.Error()
}

func (e StatusErr) Unwrap() error {
	return e.Err
}

// Device is a DS3231 on a Bus.
type Device struct {
	bus     Bus
	Address uint8
}

// New creates a Device at the default address. It does not touch the chip.
func New(bus Bus) *Device {
	return &Device{bus: bus, Address: Address}
}

// Begin probes the chip by reading its status register.
func (d *Device) Begin() error {
	buf := []byte{0}
	if err := d.bus.ReadRegister(d.Address, RegStatus, buf); err != nil {
		return StatusErr{Status: FailedToConfigureClock, Err: err}
	}
	return nil
}

// Now reads the current date and time. The chip carries no zone; UTC is used.
func (d *Device) Now() (time.Time, error) {
	data := make([]byte, 7)
	if err := d.bus.ReadRegister(d.Address, RegTimeDate, data); err != nil {
		return time.Time{}, StatusErr{Status: FailedToReadClock, Err: err}
	}

	second := bcdToInt(data[0] & 0x7F)
	minute := bcdToInt(data[1] & 0x7F)
	hour := hoursBCDToInt(data[2])
	day := bcdToInt(data[4] & 0x3F)
	monthRaw := data[5]
	year := bcdToInt(data[6]) + 2000
	if monthRaw&0x80 != 0 {
		year += 100
	}
	month := time.Month(bcdToInt(monthRaw & 0x1F))

	return time.Date(year, month, day, hour, minute, second, 0, time.UTC), nil
}

// Adjust sets the clock and clears the oscillator-stop flag.
func (d *Device) Adjust(t time.Time) error {
	year := t.Year() - 2000
	century := uint8(0)
	if year >= 100 {
		year -= 100
		century = 0x80
	}
	if year < 0 {
		return StatusErr{Status: FailedWriteToClock, Err: fmt.Errorf("year %d before 2000", t.Year())}
	}

	data := []byte{
		intToBCD(t.Second()),
		intToBCD(t.Minute()),
		intToBCD(t.Hour()),
		intToBCD(int(t.Weekday()) + 1),
		intToBCD(t.Day()),
		intToBCD(int(t.Month())) | century,
		intToBCD(year),
	}
	if err := d.bus.WriteRegister(d.Address, RegTimeDate, data); err != nil {
		return StatusErr{Status: FailedWriteToClock, Err: err}
	}

	return d.updateRegister(RegStatus, 0, statOSF)
}

// LostPower reports whether the oscillator stopped since the last Adjust.
func (d *Device) LostPower() (bool, error) {
	status, err := d.readRegister(RegStatus)
	if err != nil {
		return false, err
	}
	return status&statOSF != 0, nil
}

// SetAlarm1 programs alarm 1 to fire daily when hours, minutes and seconds
// match t, and enables its interrupt. The INT/SQW pin must be in interrupt
// mode (see DisableSquareWave).
func (d *Device) SetAlarm1(t time.Time) error {
	ctrl, err := d.readRegister(RegControl)
	if err != nil {
		return err
	}
	if ctrl&ctrlINTCN == 0 {
		return StatusErr{Status: InvalidAlarm, Err: fmt.Errorf("square wave output active")}
	}

	data := []byte{
		intToBCD(t.Second()),
		intToBCD(t.Minute()),
		intToBCD(t.Hour()),
		alarmMask | intToBCD(t.Day()), // date not matched
	}
	if err := d.bus.WriteRegister(d.Address, RegAlarm1, data); err != nil {
		return StatusErr{Status: FailedWriteToClock, Err: err}
	}

	return d.updateRegister(RegControl, ctrlA1IE, 0)
}

// AlarmFired reports the match flag of alarm 1 or 2.
func (d *Device) AlarmFired(alarm int) (bool, error) {
	bit, err := alarmFlag(alarm)
	if err != nil {
		return false, err
	}
	status, err := d.readRegister(RegStatus)
	if err != nil {
		return false, err
	}
	return status&bit != 0, nil
}

// ClearAlarm resets the match flag of alarm 1 or 2.
func (d *Device) ClearAlarm(alarm int) error {
	bit, err := alarmFlag(alarm)
	if err != nil {
		return err
	}
	return d.updateRegister(RegStatus, 0, bit)
}

// DisableAlarm turns off the interrupt enable of alarm 1 or 2.
func (d *Device) DisableAlarm(alarm int) error {
	var bit uint8
	switch alarm {
	case 1:
		bit = ctrlA1IE
	case 2:
		bit = ctrlA2IE
	default:
		return StatusErr{Status: InvalidAlarm, Err: fmt.Errorf("alarm %d", alarm)}
	}
	return d.updateRegister(RegControl, 0, bit)
}

// Disable32K turns off the 32 kHz output pin.
func (d *Device) Disable32K() error {
	return d.updateRegister(RegStatus, 0, statEN32kHz)
}

// DisableSquareWave stops the square wave and puts INT/SQW in interrupt mode.
func (d *Device) DisableSquareWave() error {
	return d.updateRegister(RegControl, ctrlINTCN, ctrlRS1|ctrlRS2)
}

// ReadRegisters reads len(buf) consecutive registers starting at reg.
func (d *Device) ReadRegisters(reg uint8, buf []byte) error {
	if err := d.bus.ReadRegister(d.Address, reg, buf); err != nil {
		return StatusErr{Status: FailedToReadClock, Err: err}
	}
	return nil
}

func (d *Device) readRegister(reg uint8) (uint8, error) {
	buf := []byte{0}
	if err := d.bus.ReadRegister(d.Address, reg, buf); err != nil {
		return 0, StatusErr{Status: FailedToReadClock, Err: err}
	}
	return buf[0], nil
}

// updateRegister sets then clears bits with a read-modify-write.
func (d *Device) updateRegister(reg uint8, set, clear uint8) error {
	v, err := d.readRegister(reg)
	if err != nil {
		return err
	}
	v = (v | set) &^ clear
	if err := d.bus.WriteRegister(d.Address, reg, []byte{v}); err != nil {
		return StatusErr{Status: FailedWriteToClock, Err: err}
	}
	return nil
}

func alarmFlag(alarm int) (uint8, error) {
	switch alarm {
	case 1:
		return statA1F, nil
	case 2:
		return statA2F, nil
	default:
		return 0, StatusErr{Status: InvalidAlarm, Err: fmt.Errorf("alarm %d", alarm)}
	}
}
