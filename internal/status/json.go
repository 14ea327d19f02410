package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/arming-panel/internal/panel"
)

const unknown = "UNKNOWN"

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Mode          string         `json:"mode"`
	Ready         bool           `json:"ready"`
	Display       string         `json:"display"`
	Time          string         `json:"time"`
	Alarm         AlarmJSON      `json:"alarm"`
	HourFormat    string         `json:"hour_format"`
	ClockError    bool           `json:"clock_error"`
	Keypad        KeypadJSON     `json:"keypad"`
	Arming        ArmingJSON     `json:"arming"`
	Edit          *EditJSON      `json:"edit,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        map[string]int `json:"event_counts"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// AlarmJSON reports the programmed alarm.
type AlarmJSON struct {
	Time    string `json:"time"`
	Enabled bool   `json:"enabled"`
}

// KeypadJSON reports the code entry machine.
type KeypadJSON struct {
	Mode   string `json:"mode"`
	Digits int    `json:"digits"`
}

// ArmingJSON reports the two-key machine and the disarm outputs.
type ArmingJSON struct {
	Mode     string `json:"mode"`
	Progress int    `json:"progress"`
	Buzzer   bool   `json:"buzzer"`
}

// EditJSON reports the value being edited in config mode.
type EditJSON struct {
	Target string `json:"target"`
	Value  string `json:"value"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs         int64  `json:"poll_ms"`
	ClockRefreshMs int64  `json:"clock_refresh_ms"`
	LongPressMs    int64  `json:"long_press_ms"`
	WindowMs       int64  `json:"window_ms"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

// HourFormat names the display format of s.
func HourFormat(s panel.State) string {
	if s.Hour12 {
		return "12h"
	}
	return "24h"
}

// ModeOrUnknown returns the device mode, or UNKNOWN before the first update.
func (s Snapshot) ModeOrUnknown() string {
	if !s.Ready || s.Panel.Mode == "" {
		return unknown
	}
	return string(s.Panel.Mode)
}

func buildInner(snap Snapshot) StatusInner {
	p := snap.Panel

	counts := make(map[string]int, len(snap.Counts))
	for k, v := range snap.Counts {
		counts[string(k)] = v
	}

	inner := StatusInner{
		Mode:          snap.ModeOrUnknown(),
		Ready:         snap.Ready,
		Display:       p.Display,
		Time:          fmt.Sprintf("%02d:%02d:%02d", p.Time.Hours, p.Time.Minutes, p.Time.Seconds),
		Alarm:         AlarmJSON{Time: p.Alarm.Clock24(), Enabled: p.AlarmEnabled},
		HourFormat:    HourFormat(p),
		ClockError:    p.ClockError,
		Keypad:        KeypadJSON{Mode: p.KeypadMode.String(), Digits: p.Digits},
		Arming:        ArmingJSON{Mode: p.ArmingMode.String(), Progress: p.Progress, Buzzer: p.Buzzer},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        counts,
		Config: ConfigJSON{
			PollMs:         snap.Config.PollMs,
			ClockRefreshMs: snap.Config.ClockRefreshMs,
			LongPressMs:    snap.Config.LongPressMs,
			WindowMs:       snap.Config.WindowMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	if p.Mode == panel.ModeConfig {
		inner.Edit = &EditJSON{Target: string(p.Target), Value: p.Draft.Clock24()}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
