// Package mqtt publishes button transitions and lifecycle events to a broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/button-monitor/internal/monitor"
)

// DefaultTopic is the topic prefix used when none is configured.
const DefaultTopic = "gpio/button-monitor"

// EventsTopic returns the topic for button transitions under prefix.
func EventsTopic(prefix string) string {
	return prefix + "/events"
}

// SystemTopic returns the topic for lifecycle events under prefix.
func SystemTopic(prefix string) string {
	return prefix + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a button transition to the broker.
	// Returns error if publishing fails (should not stop the monitor).
	Publish(t monitor.Transition) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a lifecycle event (startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // "STARTUP", "SHUTDOWN"
	Reason     string // signal name (shutdown only)
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message payload for a button transition.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload contains the transition details.
type ButtonPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Pin       int    `json:"pin"`
	Edge      string `json:"edge"`
	Seq       *int   `json:"seq,omitempty"` // presses only
	Presses   int    `json:"presses"`
	LED       string `json:"led,omitempty"`
}

// FormatPayload creates the JSON payload for a transition.
func FormatPayload(t monitor.Transition) ([]byte, error) {
	p := ButtonPayload{
		Timestamp: t.Time.UTC().Format(time.RFC3339),
		Event:     string(t.Type),
		Pin:       t.Pin,
		Edge:      t.Edge.String(),
		Presses:   t.Presses,
	}
	if t.Pressed() {
		seq := t.Seq
		p.Seq = &seq
	}
	if t.HasLED {
		p.LED = t.LED.String()
	}
	return json.Marshal(Payload{Button: p})
}

// SystemPayload is the payload for events without a status snapshot (LWT).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// Sink adapts a Publisher to monitor.Sink.
func Sink(p Publisher) monitor.Sink {
	return publisherSink{p}
}

type publisherSink struct {
	p Publisher
}

func (s publisherSink) Record(t monitor.Transition) error {
	return s.p.Publish(t)
}
