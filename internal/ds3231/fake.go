package ds3231

import "fmt"

// MemBus emulates the chip's register file for tests.
// Reads and writes auto-increment and wrap like the real device.
type MemBus struct {
	Regs [RegCount]byte

	// ReadError and WriteError, if set, are returned by every call.
	ReadError  error
	WriteError error

	Reads  int
	Writes int
}

// NewMemBus returns a register file in the power-on state: oscillator
// stopped flag set, INTCN set, 32 kHz output enabled.
func NewMemBus() *MemBus {
	b := &MemBus{}
	b.Regs[RegControl] = ctrlINTCN | ctrlRS1 | ctrlRS2
	b.Regs[RegStatus] = statOSF | statEN32kHz
	return b
}

// ReadRegister implements Bus.
func (b *MemBus) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	if b.ReadError != nil {
		return b.ReadError
	}
	if addr != Address {
		return fmt.Errorf("no device at 0x%02x", addr)
	}
	b.Reads++
	for i := range buf {
		buf[i] = b.Regs[(int(reg)+i)%RegCount]
	}
	return nil
}

// WriteRegister implements Bus.
func (b *MemBus) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	if b.WriteError != nil {
		return b.WriteError
	}
	if addr != Address {
		return fmt.Errorf("no device at 0x%02x", addr)
	}
	b.Writes++
	for i, v := range buf {
		b.Regs[(int(reg)+i)%RegCount] = v
	}
	return nil
}

// FireAlarm sets the match flag of alarm 1 or 2 as the chip would.
func (b *MemBus) FireAlarm(alarm int) {
	if alarm == 1 {
		b.Regs[RegStatus] |= statA1F
	} else {
		b.Regs[RegStatus] |= statA2F
	}
}
