// Package status provides a thread-safe status tracker for the button monitor.
// It is written by the monitor loop and read by the HTTP server and MQTT
// lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/button-monitor/internal/gpio"
	"github.com/sweeney/button-monitor/internal/monitor"
)

// Config contains daemon configuration for display.
type Config struct {
	Monitor  monitor.Config
	Chip     string
	Broker   string
	Topic    string
	HTTPAddr string
}

// Snapshot is a point-in-time view of monitor state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Pressed       bool
	Known         bool // at least one transition has been seen
	LED           gpio.Level
	Presses       int
	Releases      int
	LastEvent     monitor.EventType
	LastEventTime time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the monitor started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable monitor state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
// The LED starts at the configured off level.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			LED:       cfg.Monitor.OffLevel(),
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Record applies a transition. It implements monitor.Sink.
func (t *Tracker) Record(tr monitor.Transition) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Known = true
	t.snap.Pressed = tr.Pressed()
	t.snap.Presses = tr.Presses
	if !tr.Pressed() {
		t.snap.Releases++
	}
	if tr.HasLED {
		t.snap.LED = tr.LED
	}
	t.snap.LastEvent = tr.Type
	t.snap.LastEventTime = tr.Time
	return nil
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the monitor state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}

var _ monitor.Sink = (*Tracker)(nil)
