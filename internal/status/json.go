package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Button        string     `json:"button"`
	LED           string     `json:"led,omitempty"`
	Presses       int        `json:"presses"`
	Releases      int        `json:"releases"`
	LastEvent     string     `json:"last_event,omitempty"`
	LastEventTime string     `json:"last_event_time,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of the monitor config.
type ConfigJSON struct {
	ButtonPin   int    `json:"button_pin"`
	LEDPin      int    `json:"led_pin"`
	Scheme      string `json:"scheme"`
	PressedEdge string `json:"pressed_edge"`
	OnLevel     string `json:"on_level"`
	Chip        string `json:"chip"`
	Topic       string `json:"topic,omitempty"`
	HTTPAddr    string `json:"http_addr,omitempty"`
}

// ButtonState renders the button state: PRESSED, RELEASED or UNKNOWN before
// the first transition.
func (s Snapshot) ButtonState() string {
	switch {
	case !s.Known:
		return "UNKNOWN"
	case s.Pressed:
		return "PRESSED"
	}
	return "RELEASED"
}

func buildInner(snap Snapshot) StatusInner {
	mc := snap.Config.Monitor
	inner := StatusInner{
		Button:        snap.ButtonState(),
		Presses:       snap.Presses,
		Releases:      snap.Releases,
		LastEvent:     string(snap.LastEvent),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			ButtonPin:   mc.ButtonPin,
			LEDPin:      mc.LEDPin,
			Scheme:      mc.Scheme.String(),
			PressedEdge: mc.PressedEdge.String(),
			OnLevel:     mc.OnLevel.String(),
			Chip:        snap.Config.Chip,
			Topic:       snap.Config.Topic,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if mc.HasLED() {
		inner.LED = snap.LED.String()
	}
	if !snap.LastEventTime.IsZero() {
		inner.LastEventTime = snap.LastEventTime.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
