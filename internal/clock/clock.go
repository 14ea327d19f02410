// Package clock keeps time-of-day and a single daily alarm on a
// battery-backed real-time clock chip.
//
// Only the time of day matters to the panel: every write is normalised to
// 2000-01-01 and every read drops the date. The service caches the last
// read time because a chip round trip is comparatively slow; callers refresh
// the cache with Update.
package clock

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/sweeney/arming-panel/internal/ds3231"
	"github.com/sweeney/arming-panel/internal/logger"
	"github.com/sweeney/arming-panel/internal/version"
)

// Alarm channels of the chip. The panel only uses alarmMain.
const (
	alarmMain   = 1
	alarmUnused = 2
)

// alarmRegBytes is the seconds, minutes and hours registers of alarm 1.
const alarmRegBytes = 3

var errClockUnavailable = errors.New("clock hardware unavailable")

// Hardware is the clock chip capability consumed by Service.
type Hardware interface {
	Begin() error
	Now() (time.Time, error)
	Adjust(t time.Time) error
	LostPower() (bool, error)
	SetAlarm1(t time.Time) error
	AlarmFired(alarm int) (bool, error)
	ClearAlarm(alarm int) error
	DisableAlarm(alarm int) error
	Disable32K() error
	DisableSquareWave() error
	// ReadRegisters is a raw register read, used to recover the programmed
	// alarm which the higher level calls cannot return.
	ReadRegisters(reg uint8, buf []byte) error
}

// WallTime is a time of day.
type WallTime struct {
	Hours   int
	Minutes int
	Seconds int
}

// AlarmTime is a time of day with minute resolution; Seconds is always 0.
type AlarmTime = WallTime

// String formats w as the display/debug consumers expect.
func (w WallTime) String() string {
	return fmt.Sprintf("hours: %d, minutes: %d, seconds: %d", w.Hours, w.Minutes, w.Seconds)
}

// Clock24 formats w as HH:MM.
func (w WallTime) Clock24() string {
	return fmt.Sprintf("%02d:%02d", w.Hours, w.Minutes)
}

// Clock12 formats w as h:MM AM/PM.
func (w WallTime) Clock12() string {
	suffix := "AM"
	h := w.Hours
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, w.Minutes, suffix)
}

// epochDate anchors every value written to the chip.
func epochDate(w WallTime) time.Time {
	return time.Date(2000, time.January, 1, w.Hours, w.Minutes, w.Seconds, 0, time.UTC)
}

func fromTime(t time.Time) WallTime {
	return WallTime{Hours: t.Hour(), Minutes: t.Minute(), Seconds: t.Second()}
}

// Options tunes Service construction.
type Options struct {
	// Seed returns the time written to the chip after a power loss.
	// Defaults to the build timestamp.
	Seed func() time.Time
	// BeginRetries is how many extra probe attempts Begin makes.
	BeginRetries uint64
	// BeginRetryDelay separates probe attempts.
	BeginRetryDelay time.Duration
}

// Service wraps a Hardware clock.
type Service struct {
	hw      Hardware
	opts    Options
	log     *zap.SugaredLogger
	current WallTime
	failed  bool
}

// New creates a Service. Nothing touches the hardware until Begin.
func New(hw Hardware, opts Options) *Service {
	if opts.Seed == nil {
		opts.Seed = version.BuildTimestamp
	}
	return &Service{
		hw:   hw,
		opts: opts,
		log:  logger.Named("clock"),
	}
}

// Begin initialises the chip. If it does not respond the service degrades
// to a zeroed, non-advancing clock and ClockError reports true for the rest
// of the run. Otherwise a power loss reseeds the chip, the auxiliary outputs
// are switched off and only alarm 1 is left armed.
func (s *Service) Begin() {
	probe := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.BeginRetryDelay), s.opts.BeginRetries)
	if err := backoff.Retry(s.hw.Begin, probe); err != nil {
		s.log.Errorw("clock did not respond, running without time keeping", "error", err)
		s.current = WallTime{}
		s.failed = true
		return
	}

	if lost, err := s.hw.LostPower(); err != nil {
		s.log.Warnw("cannot read power-loss flag", "error", err)
	} else if lost {
		seed := s.opts.Seed()
		s.log.Warnw("clock lost power, reseeding", "seed", seed.Format(time.RFC3339))
		if err := s.hw.Adjust(seed); err != nil {
			s.log.Errorw("reseed clock", "error", err)
		}
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"disable 32k output", s.hw.Disable32K},
		{"disable square wave", s.hw.DisableSquareWave},
		{"clear alarm 1", func() error { return s.hw.ClearAlarm(alarmMain) }},
		{"clear alarm 2", func() error { return s.hw.ClearAlarm(alarmUnused) }},
		{"disable alarm 2", func() error { return s.hw.DisableAlarm(alarmUnused) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			s.log.Warnw(step.name, "error", err)
		}
	}

	if err := s.Update(); err != nil {
		s.log.Warnw("initial clock read", "error", err)
	}
}

// Update re-reads the time into the cache. It is a no-op once Begin has
// declared the hardware absent; on a read error the cache is kept.
func (s *Service) Update() error {
	if s.failed {
		return nil
	}
	now, err := s.hw.Now()
	if err != nil {
		return fmt.Errorf("read time: %w", err)
	}
	s.current = fromTime(now)
	return nil
}

// Time returns the cached time of day.
func (s *Service) Time() WallTime {
	return s.current
}

// TimeString formats the cached time as "hours: H, minutes: M, seconds: S".
func (s *Service) TimeString() string {
	return s.current.String()
}

// ClockError reports whether the chip failed to respond in Begin.
func (s *Service) ClockError() bool {
	return s.failed
}

// SetTime writes w to the chip. The cache is not refreshed; call Update.
func (s *Service) SetTime(w WallTime) error {
	if s.failed {
		return errClockUnavailable
	}
	if err := s.hw.Adjust(epochDate(w)); err != nil {
		return fmt.Errorf("set time: %w", err)
	}
	return nil
}

// SetAlarm programs alarm 1 to match a's hours and minutes at second 0.
func (s *Service) SetAlarm(a AlarmTime) error {
	if s.failed {
		return errClockUnavailable
	}
	a.Seconds = 0
	if err := s.hw.SetAlarm1(epochDate(a)); err != nil {
		return fmt.Errorf("set alarm: %w", err)
	}
	return nil
}

// Alarm reads the programmed alarm straight from the alarm 1 registers.
func (s *Service) Alarm() (AlarmTime, error) {
	if s.failed {
		return AlarmTime{}, errClockUnavailable
	}
	buf := make([]byte, alarmRegBytes)
	if err := s.hw.ReadRegisters(ds3231.RegAlarm1, buf); err != nil {
		return AlarmTime{}, fmt.Errorf("read alarm: %w", err)
	}
	// buf[0] is seconds, always 0 for panel alarms.
	h, m := ds3231.DecodeAlarmHoursMinutes(buf[1], buf[2])
	return AlarmTime{Hours: h, Minutes: m}, nil
}

// AlarmFired reports and clears the alarm 1 match flag. A match is reported
// once; the next report needs the chip to match again.
func (s *Service) AlarmFired() bool {
	if s.failed {
		return false
	}
	fired, err := s.hw.AlarmFired(alarmMain)
	if err != nil {
		s.log.Warnw("read alarm flag", "error", err)
		return false
	}
	if !fired {
		return false
	}
	if err := s.hw.ClearAlarm(alarmMain); err != nil {
		s.log.Warnw("clear alarm flag", "error", err)
	}
	return true
}
