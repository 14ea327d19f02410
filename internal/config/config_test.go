package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sweeney/arming-panel/internal/gpio"
	"github.com/sweeney/arming-panel/internal/keypad"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(Default()))
	require.Equal(t, gpio.DefaultChip, Default().GPIOChip)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"short code", func(c *Config) { c.Keypad.Code = []int{1, 2, 3} }, errCodeLength},
		{"empty code", func(c *Config) { c.Keypad.Code = nil; c.Keypad.LEDs = nil }, errCodeLength},
		{"code longer than keypad buffer", func(c *Config) {
			c.Keypad.Code = make([]int, keypad.MaxCodeLength+1)
			c.Keypad.LEDs = make([]int, keypad.MaxCodeLength+1)
		}, errCodeLength},
		{"bad digit", func(c *Config) { c.Keypad.Code = []int{1, 2, 3, 10} }, errCodeDigit},
		{"missing row", func(c *Config) { c.Keypad.Rows = c.Keypad.Rows[:3] }, errKeypadShape},
		{"duplicate pin", func(c *Config) { c.Buzzer = c.TwoKeys.Left }, errDuplicatePin},
		{"negative window", func(c *Config) { c.TwoKeys.Window = -time.Millisecond }, errNegativeTiming},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateFillsZeroTimings(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Poll = 0
	cfg.Keypad.LongPress = 0
	cfg.TwoKeys.ResetInterval = 0
	cfg.TwoKeys.Window = 0

	require.NoError(t, Validate(cfg))
	require.Equal(t, 10*time.Millisecond, cfg.Poll)
	require.Equal(t, time.Second, cfg.Keypad.LongPress)
	require.Equal(t, 250*time.Millisecond, cfg.TwoKeys.ResetInterval)
	require.Equal(t, 250*time.Millisecond, cfg.TwoKeys.Window)
}

func TestValidateBroker(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.MQTT.Broker = "not a url"
	require.Error(t, Validate(cfg))

	cfg = Default()
	cfg.MQTT.Broker = "tcp://192.168.1.200:1883"
	cfg.MQTT.ClientID = ""
	require.NoError(t, Validate(cfg))
	require.Equal(t, "arming-panel", cfg.MQTT.ClientID)
}

func TestLoadPartialFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "panel.yaml")
	data := []byte(`
poll: 20ms
keypad:
  code: [4, 3, 2, 1]
  long_press: 1500ms
two_keys:
  window: 400ms
mqtt:
  broker: tcp://broker.local:1883
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 20*time.Millisecond, cfg.Poll)
	require.Equal(t, []int{4, 3, 2, 1}, cfg.Keypad.Code)
	require.Equal(t, 1500*time.Millisecond, cfg.Keypad.LongPress)
	require.Equal(t, 400*time.Millisecond, cfg.TwoKeys.Window)
	require.Equal(t, 250*time.Millisecond, cfg.TwoKeys.ResetInterval)
	require.Equal(t, Default().Keypad.Rows, cfg.Keypad.Rows)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "panel.yaml")
	cfg := Default()
	cfg.Keypad.Code = []int{9, 9, 0, 1}
	cfg.HTTP = ""

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestSaveNil(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil), errConfigIsNotSet)
}
