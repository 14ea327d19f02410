package panel

import (
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/arming-panel/internal/clock"
	"github.com/sweeney/arming-panel/internal/keypad"
	"github.com/sweeney/arming-panel/internal/logger"
)

// DefaultClockRefresh is how often the cached time is re-read.
const DefaultClockRefresh = time.Second

// DisarmStages is the number of progress LEDs: one for the code, one for
// the keys.
const DisarmStages = 2

// Components are the collaborators of a Controller.
type Components struct {
	Clock    Clock
	Keypad   CodeEntry
	Arming   Arming
	Progress Indicator
	Buzzer   Switch
}

// Options tunes a Controller.
type Options struct {
	// ClockRefresh defaults to DefaultClockRefresh.
	ClockRefresh time.Duration
	// AlarmDisabled starts with the alarm switched off.
	AlarmDisabled bool
	// Hour12 starts with the 12 hour display.
	Hour12 bool
}

// Controller runs the device modes. It is not safe for concurrent use.
type Controller struct {
	c       Components
	log     *zap.SugaredLogger
	refresh time.Duration

	mode         Mode
	alarm        clock.AlarmTime
	alarmEnabled bool
	hour12       bool
	sinceRefresh time.Duration

	target Target
	draft  clock.WallTime

	codeDone bool
	keysDone bool

	startTime     time.Time
	lastHeartbeat time.Time
	counts        EventCounts
}

// New creates a Controller. Call Start before the first Tick.
func New(c Components, opts Options) *Controller {
	refresh := opts.ClockRefresh
	if refresh <= 0 {
		refresh = DefaultClockRefresh
	}
	return &Controller{
		c:            c,
		log:          logger.Named("panel"),
		refresh:      refresh,
		mode:         ModeClock,
		alarmEnabled: !opts.AlarmDisabled,
		hour12:       opts.Hour12,
		target:       TargetClock,
		counts:       EventCounts{},
	}
}

// Start parks every component and enters Clock mode. The clock must
// already have been through Begin.
func (p *Controller) Start(now time.Time) {
	p.startTime = now
	p.lastHeartbeat = now

	p.warn("buzzer off", p.c.Buzzer.Set(false))
	p.warn("progress leds", p.c.Progress.SetLevel(0))
	p.warn("keypad idle", p.c.Keypad.Idle())
	p.warn("arming idle", p.c.Arming.Idle())

	if !p.c.Clock.ClockError() {
		if a, err := p.c.Clock.Alarm(); err != nil {
			p.log.Warnw("read alarm", "error", err)
		} else {
			p.alarm = a
		}
	}
	p.mode = ModeClock

	p.log.Infow("panel started",
		"time", p.c.Clock.Time().Clock24(),
		"alarm", p.alarm.Clock24(),
		"alarm_enabled", p.alarmEnabled,
		"clock_error", p.c.Clock.ClockError(),
	)
}

// Tick advances the device by elapsed and returns any events that occurred.
func (p *Controller) Tick(now time.Time, elapsed time.Duration) []Event {
	p.sinceRefresh += elapsed
	if p.sinceRefresh >= p.refresh {
		p.sinceRefresh = 0
		p.warn("refresh clock", p.c.Clock.Update())
	}

	p.warn("keypad", p.c.Keypad.Update(elapsed))
	p.warn("arming keys", p.c.Arming.Update(elapsed))

	var events []Event
	emit := func(t EventType) {
		events = append(events, p.event(now, t))
	}

	if p.mode != ModeRinging && p.c.Clock.AlarmFired() {
		if p.alarmEnabled {
			p.ring()
			emit(EventAlarmFired)
			p.count(events)
			return events
		}
		p.log.Debugw("alarm matched while disabled")
	}

	switch p.mode {
	case ModeClock:
		switch {
		case p.c.Keypad.IsConfigModeRequested():
			p.enterConfig()
			emit(EventConfigEntered)
		case p.c.Keypad.IsAlarmToggleRequested():
			p.alarmEnabled = !p.alarmEnabled
			if p.alarmEnabled {
				emit(EventAlarmEnabled)
			} else {
				emit(EventAlarmDisabled)
			}
		case p.c.Keypad.IsHourFormatToggleRequested():
			p.hour12 = !p.hour12
			emit(EventHourFormat)
		}

	case ModeConfig:
		if t, ok := p.configKey(p.c.Keypad.ConfigModeKey()); ok {
			emit(t)
		}

	case ModeRinging:
		if !p.codeDone && p.c.Keypad.IsFinalValidStatus() {
			p.codeDone = true
			emit(EventCodeAccepted)
		}
		if !p.keysDone && p.c.Arming.IsFinalValidStatus() {
			p.keysDone = true
			emit(EventKeysAccepted)
		}
		p.warn("progress leds", p.c.Progress.SetLevel(p.stages()))

		if p.codeDone && p.keysDone {
			p.disarm()
			emit(EventDisarmed)
		}
	}

	p.count(events)
	return events
}

// configKey applies one Config mode key and reports the event it caused.
func (p *Controller) configKey(k keypad.Key) (EventType, bool) {
	switch k {
	case keypad.ConfigIncHours:
		p.draft.Hours = (p.draft.Hours + 1) % 24
	case keypad.ConfigDecHours:
		p.draft.Hours = (p.draft.Hours + 23) % 24
	case keypad.ConfigIncMinutes:
		p.draft.Minutes = (p.draft.Minutes + 1) % 60
	case keypad.ConfigDecMinutes:
		p.draft.Minutes = (p.draft.Minutes + 59) % 60
	case keypad.ConfigToggleTarget:
		if p.target == TargetClock {
			p.target = TargetAlarm
		} else {
			p.target = TargetClock
		}
		p.loadDraft()
	case keypad.ConfigExitSave:
		if err := p.save(); err != nil {
			p.log.Errorw("save config", "target", p.target, "error", err)
			p.exitConfig()
			return EventConfigDiscarded, true
		}
		p.exitConfig()
		return EventConfigSaved, true
	case keypad.ConfigExitDiscard:
		p.exitConfig()
		return EventConfigDiscarded, true
	}
	return "", false
}

func (p *Controller) save() error {
	switch p.target {
	case TargetAlarm:
		if err := p.c.Clock.SetAlarm(p.draft); err != nil {
			return err
		}
		p.alarm = clock.AlarmTime{Hours: p.draft.Hours, Minutes: p.draft.Minutes}
		p.log.Infow("alarm set", "alarm", p.alarm.Clock24())
	default:
		if err := p.c.Clock.SetTime(p.draft); err != nil {
			return err
		}
		p.sinceRefresh = 0
		if err := p.c.Clock.Update(); err != nil {
			return err
		}
		p.log.Infow("time set", "time", p.c.Clock.Time().Clock24())
	}
	return nil
}

func (p *Controller) enterConfig() {
	p.warn("keypad config", p.c.Keypad.SetConfigMode())
	p.target = TargetClock
	p.loadDraft()
	p.mode = ModeConfig
	p.log.Infow("config mode")
}

func (p *Controller) exitConfig() {
	p.warn("keypad idle", p.c.Keypad.Idle())
	p.mode = ModeClock
}

func (p *Controller) loadDraft() {
	if p.target == TargetAlarm {
		p.draft = p.alarm
	} else {
		p.draft = p.c.Clock.Time()
	}
	p.draft.Seconds = 0
}

func (p *Controller) ring() {
	p.log.Infow("alarm fired", "time", p.c.Clock.Time().Clock24())
	p.codeDone = false
	p.keysDone = false
	p.warn("buzzer on", p.c.Buzzer.Set(true))
	p.warn("progress leds", p.c.Progress.SetLevel(0))
	p.warn("keypad init", p.c.Keypad.Init())
	p.warn("arming init", p.c.Arming.Init())
	p.mode = ModeRinging
}

func (p *Controller) disarm() {
	p.log.Infow("disarmed")
	p.warn("buzzer off", p.c.Buzzer.Set(false))
	p.warn("progress leds", p.c.Progress.SetLevel(0))
	p.warn("keypad idle", p.c.Keypad.Idle())
	p.warn("arming idle", p.c.Arming.Idle())
	p.codeDone = false
	p.keysDone = false
	p.mode = ModeClock
}

func (p *Controller) stages() int {
	n := 0
	if p.codeDone {
		n++
	}
	if p.keysDone {
		n++
	}
	return n
}

func (p *Controller) event(now time.Time, t EventType) Event {
	return Event{
		Timestamp:    now,
		Type:         t,
		Mode:         p.mode,
		Time:         p.c.Clock.Time(),
		Alarm:        p.alarm,
		AlarmEnabled: p.alarmEnabled,
		Hour12:       p.hour12,
	}
}

func (p *Controller) count(events []Event) {
	for _, e := range events {
		p.counts[e.Type]++
	}
}

func (p *Controller) warn(what string, err error) {
	if err != nil {
		p.log.Warnw(what, "error", err)
	}
}

// Mode returns the device mode.
func (p *Controller) Mode() Mode {
	return p.mode
}

// Display formats the time the device shows: the draft in Config mode,
// otherwise the cached clock time, in the selected hour format.
func (p *Controller) Display() string {
	w := p.c.Clock.Time()
	if p.mode == ModeConfig {
		w = p.draft
	}
	if p.hour12 {
		return w.Clock12()
	}
	return w.Clock24()
}

// State returns a snapshot of the device.
func (p *Controller) State() State {
	s := State{
		Mode:         p.mode,
		Display:      p.Display(),
		Time:         p.c.Clock.Time(),
		Alarm:        p.alarm,
		AlarmEnabled: p.alarmEnabled,
		Hour12:       p.hour12,
		ClockError:   p.c.Clock.ClockError(),
		KeypadMode:   p.c.Keypad.Mode(),
		Digits:       p.c.Keypad.Digits(),
		ArmingMode:   p.c.Arming.Mode(),
		Progress:     p.c.Progress.Level(),
		Buzzer:       p.c.Buzzer.On(),
	}
	if p.mode == ModeConfig {
		s.Target = p.target
		s.Draft = p.draft
	}
	return s
}

// Counts returns a copy of the event counters.
func (p *Controller) Counts() EventCounts {
	out := make(EventCounts, len(p.counts))
	for k, v := range p.counts {
		out[k] = v
	}
	return out
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since
// the last heartbeat (or startup). Returns nil if the interval has not
// elapsed or is <= 0 (disabled).
func (p *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(p.lastHeartbeat) < interval {
		return nil
	}

	p.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(p.startTime),
		Mode:      p.mode,
		Counts:    p.Counts(),
	}
}
