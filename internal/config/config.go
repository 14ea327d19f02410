// Package config loads and validates the YAML settings of the arming panel.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/arming-panel/internal/gpio"
	"github.com/sweeney/arming-panel/internal/keypad"
)

const (
	// DefaultConfigFilename is used when no path is given.
	DefaultConfigFilename = "/etc/arming-panel.yaml"

	// DefaultFilePermissions is applied by Save.
	DefaultFilePermissions = 0o600

	keypadRows = 4
	keypadCols = 3
)

// Config is the full daemon configuration.
type Config struct {
	// GPIOChip is the gpiochip device name, e.g. "gpiochip0".
	GPIOChip string `yaml:"gpio_chip"`
	// I2CBus is the I2C character device the clock chip hangs off.
	I2CBus string `yaml:"i2c_bus"`
	// Poll is the driver loop period.
	Poll time.Duration `yaml:"poll"`
	// ClockRefresh is how much elapsed loop time passes between clock reads.
	ClockRefresh time.Duration `yaml:"clock_refresh"`

	Keypad       Keypad  `yaml:"keypad"`
	TwoKeys      TwoKeys `yaml:"two_keys"`
	ProgressLEDs []int   `yaml:"progress_leds"`
	Buzzer       int     `yaml:"buzzer"`

	MQTT MQTT `yaml:"mqtt"`
	// HTTP is the status server listen address; empty disables it.
	HTTP     string `yaml:"http"`
	LogLevel string `yaml:"log_level"`
}

// Keypad holds the matrix wiring, feedback LEDs and the reference code.
type Keypad struct {
	Rows      []int         `yaml:"rows"`
	Cols      []int         `yaml:"cols"`
	LEDs      []int         `yaml:"leds"`
	Code      []int         `yaml:"code"`
	LongPress time.Duration `yaml:"long_press"`
}

// TwoKeys holds the dual switch wiring and its timing windows.
type TwoKeys struct {
	Left          int           `yaml:"left"`
	LeftLED       int           `yaml:"left_led"`
	Right         int           `yaml:"right"`
	RightLED      int           `yaml:"right_led"`
	ResetInterval time.Duration `yaml:"reset_interval"`
	Window        time.Duration `yaml:"window"`
}

// MQTT configures event telemetry. An empty Broker disables it.
type MQTT struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

var (
	errConfigIsNotSet = errors.New("configuration is not set")
	errKeypadShape    = errors.New("keypad must have 4 row pins and 3 column pins")
	errCodeLength     = errors.New("code length must match the keypad LED count")
	errCodeDigit      = errors.New("code digits must be in 0..9")
	errDuplicatePin   = errors.New("pin assigned twice")
	errNegativeTiming = errors.New("timings must not be negative")
)

// Default returns the wiring of the reference board (BCM numbering).
func Default() *Config {
	return &Config{
		GPIOChip:     gpio.DefaultChip,
		I2CBus:       "/dev/i2c-1",
		Poll:         10 * time.Millisecond,
		ClockRefresh: time.Second,
		Keypad: Keypad{
			Rows:      []int{5, 6, 13, 19},
			Cols:      []int{12, 16, 20},
			LEDs:      []int{17, 27, 22, 23},
			Code:      []int{1, 5, 8, 9},
			LongPress: time.Second,
		},
		TwoKeys: TwoKeys{
			Left:          24,
			LeftLED:       25,
			Right:         21,
			RightLED:      26,
			ResetInterval: 250 * time.Millisecond,
			Window:        250 * time.Millisecond,
		},
		ProgressLEDs: []int{4, 18},
		Buzzer:       11,
		MQTT: MQTT{
			ClientID:  "arming-panel",
			Heartbeat: 15 * time.Minute,
		},
		HTTP:     ":80",
		LogLevel: "info",
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save validates cfg and writes it to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks wiring and timings, filling zero timings with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	def := Default()

	if cfg.Poll < 0 || cfg.ClockRefresh < 0 || cfg.Keypad.LongPress < 0 ||
		cfg.TwoKeys.ResetInterval < 0 || cfg.TwoKeys.Window < 0 || cfg.MQTT.Heartbeat < 0 {
		return errNegativeTiming
	}
	if cfg.Poll == 0 {
		cfg.Poll = def.Poll
	}
	if cfg.ClockRefresh == 0 {
		cfg.ClockRefresh = def.ClockRefresh
	}
	if cfg.Keypad.LongPress == 0 {
		cfg.Keypad.LongPress = def.Keypad.LongPress
	}
	if cfg.TwoKeys.ResetInterval == 0 {
		cfg.TwoKeys.ResetInterval = def.TwoKeys.ResetInterval
	}
	if cfg.TwoKeys.Window == 0 {
		cfg.TwoKeys.Window = def.TwoKeys.Window
	}
	if cfg.GPIOChip == "" {
		cfg.GPIOChip = def.GPIOChip
	}
	if cfg.I2CBus == "" {
		cfg.I2CBus = def.I2CBus
	}

	if len(cfg.Keypad.Rows) != keypadRows || len(cfg.Keypad.Cols) != keypadCols {
		return errKeypadShape
	}

	n := len(cfg.Keypad.Code)
	if n == 0 || n > keypad.MaxCodeLength || n != len(cfg.Keypad.LEDs) {
		return fmt.Errorf("%w: code has %d digits, %d LEDs", errCodeLength, n, len(cfg.Keypad.LEDs))
	}
	for i, d := range cfg.Keypad.Code {
		if d < 0 || d > 9 {
			return fmt.Errorf("%w: digit %d is %d", errCodeDigit, i, d)
		}
	}

	if err := checkPins(cfg); err != nil {
		return err
	}

	if cfg.MQTT.Broker != "" {
		if _, err := url.ParseRequestURI(cfg.MQTT.Broker); err != nil {
			return fmt.Errorf("invalid mqtt broker: %w", err)
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = def.MQTT.ClientID
		}
	}

	return nil
}

func checkPins(cfg *Config) error {
	seen := make(map[int]string)
	claim := func(pin int, name string) error {
		if prev, ok := seen[pin]; ok {
			return fmt.Errorf("%w: %d (%s, %s)", errDuplicatePin, pin, prev, name)
		}
		seen[pin] = name
		return nil
	}

	for i, p := range cfg.Keypad.Rows {
		if err := claim(p, fmt.Sprintf("keypad row %d", i)); err != nil {
			return err
		}
	}
	for i, p := range cfg.Keypad.Cols {
		if err := claim(p, fmt.Sprintf("keypad col %d", i)); err != nil {
			return err
		}
	}
	for i, p := range cfg.Keypad.LEDs {
		if err := claim(p, fmt.Sprintf("keypad led %d", i)); err != nil {
			return err
		}
	}
	for i, p := range cfg.ProgressLEDs {
		if err := claim(p, fmt.Sprintf("progress led %d", i)); err != nil {
			return err
		}
	}

	named := []struct {
		pin  int
		name string
	}{
		{cfg.TwoKeys.Left, "left key"},
		{cfg.TwoKeys.LeftLED, "left key led"},
		{cfg.TwoKeys.Right, "right key"},
		{cfg.TwoKeys.RightLED, "right key led"},
		{cfg.Buzzer, "buzzer"},
	}
	for _, n := range named {
		if err := claim(n.pin, n.name); err != nil {
			return err
		}
	}

	return nil
}
