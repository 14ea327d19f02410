// Command arming-panel runs an alarm clock that is silenced only by entering
// a keypad code and turning two keys together.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sweeney/arming-panel/internal/clock"
	"github.com/sweeney/arming-panel/internal/config"
	"github.com/sweeney/arming-panel/internal/ds3231"
	"github.com/sweeney/arming-panel/internal/gpio"
	"github.com/sweeney/arming-panel/internal/keypad"
	"github.com/sweeney/arming-panel/internal/led"
	"github.com/sweeney/arming-panel/internal/logger"
	"github.com/sweeney/arming-panel/internal/mqtt"
	"github.com/sweeney/arming-panel/internal/panel"
	"github.com/sweeney/arming-panel/internal/status"
	"github.com/sweeney/arming-panel/internal/twokeys"
	"github.com/sweeney/arming-panel/internal/version"
	"github.com/sweeney/arming-panel/internal/web"
)

const (
	clockRetries    = 2
	clockRetryDelay = 200 * time.Millisecond
	shutdownTimeout = 2 * time.Second
)

var (
	configPath string
	logLevel   string
	printState bool
	poll       time.Duration

	rootCmd = &cobra.Command{
		Use:   "arming-panel",
		Short: "Run the arming panel alarm clock.",
		Long: `Runs the alarm clock driver loop.

When the alarm fires the buzzer sounds until the keypad code has been entered
and both arming keys have been turned within the window. Device events are
published over MQTT and the state is served on an HTTP status page.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.OutOrStdout())
		},
	}
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default configuration to the --config path.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	rootCmd.Flags().BoolVar(&printState, "print-state", false, "print clock and key switch state and exit")
	rootCmd.Flags().DurationVar(&poll, "poll", 0, "driver loop period; overrides the config file")
}

func main() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Logger().Errorw("fatal", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(out io.Writer) error {
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if poll > 0 {
		cfg.Poll = poll
	}
	applyLogLevel(cfg.LogLevel, logLevel)
	log := logger.Named("main")

	pins, err := gpio.NewRealPins(cfg.GPIOChip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer closeLogged(log, "release gpio lines", pins.Close)

	bus, err := ds3231.OpenLinuxBus(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("open i2c bus: %w", err)
	}
	defer closeLogged(log, "close i2c bus", bus.Close)

	hw, err := buildHardware(cfg, pins, ds3231.New(bus))
	if err != nil {
		return err
	}

	if printState {
		return writeState(out, hw)
	}

	ctl := panel.New(hw.components(), panel.Options{ClockRefresh: cfg.ClockRefresh})

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
	}
	defer closeLogged(log, "close mqtt publisher", publisher.Close)

	// Tracker exists before STARTUP so the snapshot is available.
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:         cfg.Poll.Milliseconds(),
		ClockRefreshMs: cfg.ClockRefresh.Milliseconds(),
		LongPressMs:    cfg.Keypad.LongPress.Milliseconds(),
		WindowMs:       cfg.TwoKeys.Window.Milliseconds(),
		HeartbeatMs:    cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warnw("publish startup event", "error", err)
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server", "error", err)
			}
		}()
		defer closeLogged(log, "shutdown http server", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		})
		log.Infow("http status server listening", "addr", cfg.HTTP)
	}

	log.Infow("started",
		"poll", cfg.Poll,
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.MQTT.Heartbeat,
		"clock_error", hw.clock.ClockError(),
	)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctl, publisher, publisher, tracker, cfg.MQTT.Heartbeat, time.Now, ticker.C, sigCh)
}

// closeLogged runs a teardown step and logs its failure.
func closeLogged(log *zap.SugaredLogger, what string, closer func() error) {
	if err := closer(); err != nil {
		log.Warnw(what, "error", err)
	}
}

var errConfigExists = errors.New("config file already exists")

// writeDefaultConfig saves the default settings to path. An existing file is
// left untouched.
func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", errConfigExists, path)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func applyLogLevel(fromConfig, fromFlag string) {
	name := fromConfig
	if fromFlag != "" {
		name = fromFlag
	}
	level, ok := logger.ParseLogLevel(name)
	if !ok {
		logger.Logger().Warnw("unknown log level, using info", "level", name)
	}
	logger.SetLevel(level)
}

// hardware is the set of components built from the configured wiring.
type hardware struct {
	clock    *clock.Service
	keypad   *keypad.Entry
	arming   *twokeys.Machine
	progress *led.Bank
	buzzer   *gpio.Output
	pins     gpio.Pins
	lines    twokeys.Lines
}

func (h *hardware) components() panel.Components {
	return panel.Components{
		Clock:    h.clock,
		Keypad:   h.keypad,
		Arming:   h.arming,
		Progress: h.progress,
		Buzzer:   h.buzzer,
	}
}

// buildHardware claims every line and brings up the clock. A clock that does
// not respond degrades rather than failing startup.
func buildHardware(cfg *config.Config, pins gpio.Pins, rtc clock.Hardware) (*hardware, error) {
	h := &hardware{pins: pins}

	h.clock = clock.New(rtc, clock.Options{BeginRetries: clockRetries, BeginRetryDelay: clockRetryDelay})
	h.clock.Begin()

	scanner, err := keypad.NewMatrixScanner(pins, cfg.Keypad.Rows, cfg.Keypad.Cols, nil)
	if err != nil {
		return nil, fmt.Errorf("init keypad: %w", err)
	}
	keyLEDs, err := led.NewBank(pins, cfg.Keypad.LEDs)
	if err != nil {
		return nil, fmt.Errorf("init keypad leds: %w", err)
	}
	code := make([]keypad.Key, len(cfg.Keypad.Code))
	for i, d := range cfg.Keypad.Code {
		code[i] = keypad.Key(d)
	}
	h.keypad, err = keypad.New(scanner, keyLEDs, keypad.Options{Code: code, LongPress: cfg.Keypad.LongPress})
	if err != nil {
		return nil, fmt.Errorf("init code entry: %w", err)
	}

	h.lines = twokeys.Lines{
		Left:     cfg.TwoKeys.Left,
		LeftLED:  cfg.TwoKeys.LeftLED,
		Right:    cfg.TwoKeys.Right,
		RightLED: cfg.TwoKeys.RightLED,
	}
	h.arming, err = twokeys.New(pins, h.lines, twokeys.Options{
		ResetInterval: cfg.TwoKeys.ResetInterval,
		Window:        cfg.TwoKeys.Window,
	})
	if err != nil {
		return nil, fmt.Errorf("init arming keys: %w", err)
	}

	h.progress, err = led.NewBank(pins, cfg.ProgressLEDs)
	if err != nil {
		return nil, fmt.Errorf("init progress leds: %w", err)
	}
	h.buzzer, err = gpio.NewOutput(pins, cfg.Buzzer)
	if err != nil {
		return nil, fmt.Errorf("init buzzer: %w", err)
	}

	return h, nil
}

// writeState prints the clock and the raw switch levels.
func writeState(out io.Writer, h *hardware) error {
	if h.clock.ClockError() {
		fmt.Fprintln(out, "clock: not responding")
	} else {
		fmt.Fprintf(out, "clock: %s\n", h.clock.TimeString())
		if a, err := h.clock.Alarm(); err == nil {
			fmt.Fprintf(out, "alarm: %s\n", a.Clock24())
		}
	}

	left, err := h.pins.Read(h.lines.Left)
	if err != nil {
		return fmt.Errorf("read left key: %w", err)
	}
	right, err := h.pins.Read(h.lines.Right)
	if err != nil {
		return fmt.Errorf("read right key: %w", err)
	}
	// Switches pull the line low when on.
	fmt.Fprintf(out, "left key: %s, right key: %s\n", onOff(!left), onOff(!right))
	return nil
}

func runLoop(ctl *panel.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	log := logger.Named("loop")

	last := now()
	ctl.Start(last)
	if tracker != nil {
		tracker.Update(ctl.State(), ctl.Counts())
	}

	for {
		select {
		case s := <-sig:
			log.Infow("shutting down", "signal", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warnw("publish shutdown event", "error", err)
			}
			return nil

		case <-tick:
			t := now()
			elapsed := t.Sub(last)
			last = t

			for _, event := range ctl.Tick(t, elapsed) {
				log.Infow("event", "type", event.Type, "mode", event.Mode, "time", event.Time.Clock24())
				if err := publisher.Publish(event); err != nil {
					// Don't crash on publish failure
					log.Warnw("publish event", "type", event.Type, "error", err)
				}
			}

			if tracker != nil {
				tracker.Update(ctl.State(), ctl.Counts())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			if hb := ctl.CheckHeartbeat(t, heartbeat); hb != nil {
				log.Infow("heartbeat", "uptime", hb.Uptime, "mode", hb.Mode, "counts", hb.Counts)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Warnw("publish heartbeat", "error", err)
				}
			}
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
