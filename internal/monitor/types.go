// Package monitor mirrors a button onto an LED and reports its transitions.
package monitor

import (
	"time"

	"github.com/sweeney/button-monitor/internal/gpio"
)

// NoLED is the LEDPin value meaning no LED is configured.
const NoLED = -1

// Config is the monitor configuration. It is not modified after construction.
type Config struct {
	ButtonPin   int
	LEDPin      int // NoLED (or any negative value) disables the LED
	Scheme      gpio.Scheme
	PressedEdge gpio.Edge
	OnLevel     gpio.Level
}

// HasLED reports whether an LED pin is configured.
func (c Config) HasLED() bool {
	return c.LEDPin >= 0
}

// ReleasedEdge is the edge opposite to PressedEdge.
func (c Config) ReleasedEdge() gpio.Edge {
	return c.PressedEdge.Opposite()
}

// OffLevel is the level opposite to OnLevel.
func (c Config) OffLevel() gpio.Level {
	return c.OnLevel.Opposite()
}

// EventType names a button transition.
type EventType string

const (
	EventPressed  EventType = "PRESSED"
	EventReleased EventType = "RELEASED"
)

// Transition is a processed button edge, handed to every Sink after the LED
// has been updated.
type Transition struct {
	Time    time.Time
	Type    EventType
	Pin     int
	Edge    gpio.Edge
	Seq     int // sequence number of a press; only set for EventPressed
	Presses int // presses seen so far, including this one
	HasLED  bool
	LED     gpio.Level // level the LED was driven to, if HasLED
}

// Pressed reports whether the transition is a press.
func (t Transition) Pressed() bool {
	return t.Type == EventPressed
}

// Sink receives transitions. Errors are logged and never stop the monitor.
type Sink interface {
	Record(t Transition) error
}
