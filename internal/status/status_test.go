package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/arming-panel/internal/clock"
	"github.com/sweeney/arming-panel/internal/keypad"
	"github.com/sweeney/arming-panel/internal/panel"
	"github.com/sweeney/arming-panel/internal/twokeys"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func ringing() panel.State {
	return panel.State{
		Mode:         panel.ModeRinging,
		Display:      "06:45",
		Time:         clock.WallTime{Hours: 6, Minutes: 45, Seconds: 3},
		Alarm:        clock.AlarmTime{Hours: 6, Minutes: 45},
		AlarmEnabled: true,
		KeypadMode:   keypad.ModeWaitingCode,
		Digits:       2,
		ArmingMode:   twokeys.ModeOneActivated,
		Progress:     1,
		Buzzer:       true,
	}
}

func parse(t *testing.T, data []byte) StatusInner {
	t.Helper()
	var parsed StatusJSON
	require.NoError(t, json.Unmarshal(data, &parsed))
	return parsed.Status
}

func TestNewTracker(t *testing.T) {
	cfg := Config{PollMs: 10, LongPressMs: 1000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	assert.True(t, snap.StartTime.Equal(start))
	assert.Equal(t, cfg, snap.Config)
	assert.False(t, snap.Ready)
	assert.False(t, snap.MQTTConnected)
	assert.Equal(t, unknown, snap.ModeOrUnknown())
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(ringing(), panel.EventCounts{panel.EventAlarmFired: 1})

	snap := tr.Snapshot()
	require.True(t, snap.Ready)
	require.Equal(t, panel.ModeRinging, snap.Panel.Mode)
	require.Equal(t, "RINGING", snap.ModeOrUnknown())
	require.Equal(t, 1, snap.Counts[panel.EventAlarmFired])
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	require.True(t, tr.Snapshot().MQTTConnected)

	tr.SetMQTTConnected(false)
	require.False(t, tr.Snapshot().MQTTConnected)
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	require.Nil(t, tr.Snapshot().Network)

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	require.NotNil(t, snap.Network)
	require.Equal(t, "192.168.1.42", snap.Network.IP)
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}
	require.Equal(t, 15*time.Minute, snap.Uptime())
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	require.False(t, snap.Now.Before(before))
	require.False(t, snap.Now.After(after))
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(ringing(), panel.EventCounts{})

	snap1 := tr.Snapshot()
	tr.Update(panel.State{Mode: panel.ModeClock}, panel.EventCounts{})

	require.Equal(t, panel.ModeRinging, snap1.Panel.Mode)
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Panel:         ringing(),
		Ready:         true,
		Counts:        panel.EventCounts{panel.EventAlarmFired: 2, panel.EventDisarmed: 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{PollMs: 10, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	s := parse(t, FormatJSON(snap))

	assert.Equal(t, "RINGING", s.Mode)
	assert.True(t, s.Ready)
	assert.Equal(t, "06:45", s.Display)
	assert.Equal(t, "06:45:03", s.Time)
	assert.Equal(t, AlarmJSON{Time: "06:45", Enabled: true}, s.Alarm)
	assert.Equal(t, "24h", s.HourFormat)
	assert.Equal(t, KeypadJSON{Mode: "WAITING_CODE", Digits: 2}, s.Keypad)
	assert.Equal(t, ArmingJSON{Mode: "ONE_ACTIVATED", Progress: 1, Buzzer: true}, s.Arming)
	assert.Nil(t, s.Edit)
	assert.Equal(t, int64(900), s.UptimeSeconds)
	assert.True(t, s.MQTT.Connected)
	assert.Equal(t, 2, s.Counts["ALARM_FIRED"])
	assert.Equal(t, 1, s.Counts["DISARMED"])
	assert.Equal(t, int64(10), s.Config.PollMs)
	assert.Empty(t, s.Event)
	assert.Empty(t, s.Reason)
}

func TestFormatJSONConfigMode(t *testing.T) {
	snap := Snapshot{
		Panel: panel.State{
			Mode:   panel.ModeConfig,
			Hour12: true,
			Target: panel.TargetAlarm,
			Draft:  clock.WallTime{Hours: 7, Minutes: 5},
		},
		Ready: true,
	}

	s := parse(t, FormatJSON(snap))

	require.NotNil(t, s.Edit)
	assert.Equal(t, EditJSON{Target: "ALARM", Value: "07:05"}, *s.Edit)
	assert.Equal(t, "12h", s.HourFormat)
}

func TestFormatJSONUnknownMode(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	s := parse(t, FormatJSON(snap))

	require.Equal(t, "UNKNOWN", s.Mode)
	require.False(t, s.Ready)
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Panel:     ringing(),
		Ready:     true,
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	s := parse(t, FormatStatusEvent(snap, "HEARTBEAT", ""))

	require.Equal(t, "HEARTBEAT", s.Event)
	require.Empty(t, s.Reason)
	require.Equal(t, "RINGING", s.Mode)
	require.Equal(t, int64(900), s.UptimeSeconds)
}

func TestFormatStatusEventShutdown(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(30 * time.Minute)}

	s := parse(t, FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"))

	require.Equal(t, "SHUTDOWN", s.Event)
	require.Equal(t, "SIGTERM", s.Reason)
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	var raw map[string]any
	require.NoError(t, json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw))

	inner := raw["status"].(map[string]any)
	require.NotContains(t, inner, "reason")
	require.Equal(t, "STARTUP", inner["event"])
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(time.Minute),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	s := parse(t, FormatJSON(snap))

	require.NotNil(t, s.Network)
	require.Equal(t, "192.168.1.42", s.Network.IP)
	require.Equal(t, "MyNet", s.Network.SSID)
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(ringing(), panel.EventCounts{panel.EventAlarmFired: i})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
