package twokeys

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/arming-panel/internal/gpio"
)

const tick = 10 * time.Millisecond

var lines = Lines{Left: 24, LeftLED: 25, Right: 21, RightLED: 26}

func newMachine(t *testing.T) (*Machine, *gpio.FakePins) {
	t.Helper()
	pins := gpio.NewFakePins()
	m, err := New(pins, lines, Options{})
	require.NoError(t, err)
	return m, pins
}

// turn sets a switch on (line pulled low) or off.
func turn(pins *gpio.FakePins, line int, on bool) {
	pins.Set(line, !on)
}

func step(t *testing.T, m *Machine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, m.Update(tick))
	}
}

func indicators(pins *gpio.FakePins) (left, right bool) {
	return pins.Level(lines.LeftLED), pins.Level(lines.RightLED)
}

func TestNewClaimsLines(t *testing.T) {
	m, pins := newMachine(t)

	require.Equal(t, ModeUnset, m.Mode())
	assert.Equal(t, gpio.ModeInputPullup, pins.Modes[lines.Left])
	assert.Equal(t, gpio.ModeInputPullup, pins.Modes[lines.Right])
	assert.Equal(t, gpio.ModeOutput, pins.Modes[lines.LeftLED])
	assert.Equal(t, gpio.ModeOutput, pins.Modes[lines.RightLED])
}

func TestNewRejectsSharedLines(t *testing.T) {
	_, err := New(gpio.NewFakePins(), Lines{Left: 1, LeftLED: 2, Right: 1, RightLED: 3}, Options{})
	require.ErrorIs(t, err, errSharedLine)
}

func TestInit(t *testing.T) {
	tests := []struct {
		name        string
		left, right bool
		want        Mode
	}{
		{"both off", false, false, ModeOff},
		{"left on", true, false, ModeReset},
		{"right on", false, true, ModeReset},
		{"both on", true, true, ModeReset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, pins := newMachine(t)
			turn(pins, lines.Left, tt.left)
			turn(pins, lines.Right, tt.right)

			require.NoError(t, m.Init())
			require.Equal(t, tt.want, m.Mode())

			l, r := indicators(pins)
			require.False(t, l)
			require.False(t, r)
		})
	}
}

func TestInitReadErrorForcesReset(t *testing.T) {
	m, pins := newMachine(t)
	pins.ReadError = errors.New("chip gone")

	require.ErrorIs(t, m.Init(), pins.ReadError)
	require.Equal(t, ModeReset, m.Mode())
}

func TestBothKeysWithinWindow(t *testing.T) {
	m, pins := newMachine(t)
	require.NoError(t, m.Init())

	turn(pins, lines.Left, true)
	step(t, m, 1)
	require.Equal(t, ModeOneActivated, m.Mode())
	l, r := indicators(pins)
	require.True(t, l, "left indicator lit")
	require.False(t, r)

	step(t, m, 9)
	turn(pins, lines.Right, true)
	step(t, m, 1)

	require.Equal(t, ModeTwoActivated, m.Mode())
	require.True(t, m.IsFinalValidStatus())
	l, r = indicators(pins)
	require.True(t, l)
	require.True(t, r)
}

func TestRightFirst(t *testing.T) {
	m, pins := newMachine(t)
	require.NoError(t, m.Init())

	turn(pins, lines.Right, true)
	step(t, m, 1)
	l, r := indicators(pins)
	require.False(t, l)
	require.True(t, r, "right indicator lit")

	turn(pins, lines.Left, true)
	step(t, m, 1)
	require.True(t, m.IsFinalValidStatus())
}

func TestLeftHasPriority(t *testing.T) {
	m, pins := newMachine(t)
	require.NoError(t, m.Init())

	turn(pins, lines.Left, true)
	turn(pins, lines.Right, true)
	step(t, m, 1)

	require.Equal(t, ModeOneActivated, m.Mode(), "same-tick activation needs one more tick")
	l, r := indicators(pins)
	require.True(t, l)
	require.False(t, r)

	step(t, m, 1)
	require.Equal(t, ModeTwoActivated, m.Mode())
}

func TestLateSecondKeyFallsBackToReset(t *testing.T) {
	m, pins := newMachine(t)
	require.NoError(t, m.Init())

	turn(pins, lines.Left, true)
	step(t, m, 1)

	step(t, m, 24)
	require.Equal(t, ModeOneActivated, m.Mode(), "240ms")
	step(t, m, 1)
	require.Equal(t, ModeReset, m.Mode(), "250ms")
	l, r := indicators(pins)
	require.False(t, l)
	require.False(t, r)

	// Holding past the window keeps Reset pinned.
	step(t, m, 5)
	turn(pins, lines.Right, true)
	step(t, m, 50)
	require.Equal(t, ModeReset, m.Mode())

	turn(pins, lines.Left, false)
	turn(pins, lines.Right, false)
	step(t, m, 24)
	require.Equal(t, ModeReset, m.Mode(), "240ms clear")
	step(t, m, 1)
	require.Equal(t, ModeOff, m.Mode(), "250ms clear")
}

func TestResetNeedsContinuousClear(t *testing.T) {
	m, pins := newMachine(t)
	turn(pins, lines.Left, true)
	require.NoError(t, m.Init())
	require.Equal(t, ModeReset, m.Mode())

	turn(pins, lines.Left, false)
	step(t, m, 20)
	turn(pins, lines.Left, true)
	step(t, m, 1)
	turn(pins, lines.Left, false)
	step(t, m, 20)
	require.Equal(t, ModeReset, m.Mode(), "a blip restarts the interval")

	step(t, m, 5)
	require.Equal(t, ModeOff, m.Mode())
}

func TestAbandonedSingleKeyReturnsToOff(t *testing.T) {
	m, pins := newMachine(t)
	require.NoError(t, m.Init())

	turn(pins, lines.Left, true)
	step(t, m, 5)
	turn(pins, lines.Left, false)
	step(t, m, 1)

	require.Equal(t, ModeOff, m.Mode())
	l, _ := indicators(pins)
	require.False(t, l)
}

func TestTwoActivatedIsTerminal(t *testing.T) {
	m, pins := newMachine(t)
	require.NoError(t, m.Init())
	turn(pins, lines.Left, true)
	step(t, m, 1)
	turn(pins, lines.Right, true)
	step(t, m, 1)

	turn(pins, lines.Left, false)
	turn(pins, lines.Right, false)
	step(t, m, 100)
	require.Equal(t, ModeTwoActivated, m.Mode())

	require.NoError(t, m.Init())
	require.Equal(t, ModeOff, m.Mode())
}

func TestIdleIsQuiescent(t *testing.T) {
	m, pins := newMachine(t)
	require.NoError(t, m.Init())
	turn(pins, lines.Left, true)
	step(t, m, 1)

	require.NoError(t, m.Idle())
	require.NoError(t, m.Idle())
	l, r := indicators(pins)
	require.False(t, l)
	require.False(t, r)

	turn(pins, lines.Right, true)
	pins.ReadError = errors.New("not read in idle")
	step(t, m, 100)
	require.Equal(t, ModeIdle, m.Mode())
}

func TestReadErrorSkipsTick(t *testing.T) {
	m, pins := newMachine(t)
	require.NoError(t, m.Init())
	turn(pins, lines.Left, true)
	step(t, m, 1)
	step(t, m, 20)

	pins.ReadError = errors.New("glitch")
	for i := 0; i < 10; i++ {
		require.Error(t, m.Update(tick))
	}
	require.Equal(t, ModeOneActivated, m.Mode(), "failed ticks do not count")

	pins.ReadError = nil
	turn(pins, lines.Right, true)
	step(t, m, 1)
	require.Equal(t, ModeTwoActivated, m.Mode())
}

func TestCustomWindow(t *testing.T) {
	pins := gpio.NewFakePins()
	m, err := New(pins, lines, Options{Window: time.Second, ResetInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, m.Init())

	turn(pins, lines.Left, true)
	step(t, m, 1)
	step(t, m, 90)
	turn(pins, lines.Right, true)
	step(t, m, 1)
	require.True(t, m.IsFinalValidStatus())
}

func TestModeString(t *testing.T) {
	require.Equal(t, "ONE_ACTIVATED", ModeOneActivated.String())
	require.Equal(t, "Mode(42)", Mode(42).String())
}
