// Package mqtt publishes panel events and system lifecycle events to a
// broker, with a fake for tests.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/arming-panel/internal/panel"
)

// Topic is the MQTT topic for panel events.
const Topic = "home/arming-panel/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "home/arming-panel/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a panel event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event panel.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Panel PanelPayload `json:"panel"`
}

// PanelPayload contains the panel event details.
type PanelPayload struct {
	Timestamp    string `json:"timestamp"`
	Event        string `json:"event"`
	Mode         string `json:"mode"`
	Time         string `json:"time"`
	Alarm        string `json:"alarm"`
	AlarmEnabled bool   `json:"alarm_enabled"`
	HourFormat   string `json:"hour_format"`
}

// FormatPayload creates the JSON payload for a panel event.
func FormatPayload(event panel.Event) ([]byte, error) {
	format := "24h"
	if event.Hour12 {
		format = "12h"
	}
	payload := Payload{
		Panel: PanelPayload{
			Timestamp:    event.Timestamp.UTC().Format(time.RFC3339),
			Event:        string(event.Type),
			Mode:         string(event.Mode),
			Time:         event.Time.Clock24(),
			Alarm:        event.Alarm.Clock24(),
			AlarmEnabled: event.AlarmEnabled,
			HourFormat:   format,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// NopPublisher discards everything. It stands in when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(panel.Event) error       { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error                    { return nil }
func (NopPublisher) IsConnected() bool               { return false }
