package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/button-monitor/internal/gpio"
)

// Monitor waits for edges on the button pin and mirrors them onto the LED.
type Monitor struct {
	ctrl  gpio.Controller
	cfg   Config
	log   *logrus.Logger
	sinks []Sink
	now   func() time.Time

	presses int
}

// New creates a Monitor. Pins are not touched until Run.
func New(ctrl gpio.Controller, cfg Config, log *logrus.Logger, sinks ...Sink) *Monitor {
	return &Monitor{
		ctrl:  ctrl,
		cfg:   cfg,
		log:   log,
		sinks: sinks,
		now:   time.Now,
	}
}

// Presses returns the number of presses counted by the last Run.
func (m *Monitor) Presses() int {
	return m.presses
}

// Run acquires the pins and processes button edges until ctx is cancelled.
// It returns nil on cancellation and a *gpio.AcquisitionError if a pin
// cannot be opened or configured. Pins are released on every exit path.
func (m *Monitor) Run(ctx context.Context) error {
	m.logConfig()

	mode := gpio.InputPullUp
	if !m.ctrl.IsPinModeSupported(m.cfg.ButtonPin, gpio.InputPullUp) {
		m.log.WithField("pin", m.cfg.ButtonPin).Info("pull-up input not supported, using plain input")
		mode = gpio.Input
	}
	if err := m.ctrl.OpenPin(m.cfg.ButtonPin, mode); err != nil {
		return err
	}

	ledOpen := false
	defer func() {
		if ledOpen {
			m.releaseLED()
		}
		m.closePin(m.cfg.ButtonPin)
		m.log.Info("monitor stopped")
		m.flush()
	}()

	if m.cfg.HasLED() {
		if err := m.ctrl.OpenOutput(m.cfg.LEDPin, m.cfg.OffLevel()); err != nil {
			return err
		}
		ledOpen = true
		if err := m.ctrl.Write(m.cfg.LEDPin, m.cfg.OffLevel()); err != nil {
			return &gpio.AcquisitionError{Pin: m.cfg.LEDPin, Mode: gpio.Output, Err: err}
		}
	}

	m.log.WithField("pin", m.cfg.ButtonPin).Info("waiting for button events, press Ctrl+C to exit")
	return m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) error {
	m.presses = 0
	for {
		ev, err := m.ctrl.WaitForEdge(ctx, m.cfg.ButtonPin, gpio.BothEdges)
		if err != nil {
			return fmt.Errorf("wait for edge on pin %d: %w", m.cfg.ButtonPin, err)
		}
		if ev.TimedOut {
			return nil
		}
		m.process(ev)
	}
}

// process handles one edge. Edges equal to the pressed edge are presses;
// anything else is a release.
func (m *Monitor) process(ev gpio.EdgeEvent) {
	t := Transition{
		Time:   ev.Time,
		Pin:    m.cfg.ButtonPin,
		Edge:   ev.Edge,
		HasLED: m.cfg.HasLED(),
	}
	if t.Time.IsZero() {
		t.Time = m.now()
	}

	level := m.cfg.OffLevel()
	if ev.Edge == m.cfg.PressedEdge {
		t.Type = EventPressed
		t.Seq = m.presses
		m.presses++
		level = m.cfg.OnLevel
		m.log.WithFields(logrus.Fields{"seq": t.Seq, "pin": t.Pin, "edge": ev.Edge}).
			Infof("(%d) pin %d pressed", t.Seq, t.Pin)
	} else {
		t.Type = EventReleased
		m.log.WithFields(logrus.Fields{"pin": t.Pin, "edge": ev.Edge}).
			Infof("pin %d released", t.Pin)
	}
	t.Presses = m.presses

	if m.cfg.HasLED() {
		t.LED = level
		if err := m.ctrl.Write(m.cfg.LEDPin, level); err != nil {
			m.log.WithError(err).WithField("pin", m.cfg.LEDPin).Warn("led write failed")
		}
	}

	for _, s := range m.sinks {
		if err := s.Record(t); err != nil {
			m.log.WithError(err).Warn("sink error")
		}
	}
}

func (m *Monitor) logConfig() {
	led := "none"
	if m.cfg.HasLED() {
		led = fmt.Sprint(m.cfg.LEDPin)
	}
	m.log.WithFields(logrus.Fields{
		"button":       m.cfg.ButtonPin,
		"led":          led,
		"scheme":       m.cfg.Scheme,
		"pressed_edge": m.cfg.PressedEdge,
		"on_level":     m.cfg.OnLevel,
	}).Info("button monitor starting")
}

// releaseLED reverts the LED to an input before closing it, so the line does
// not stay driven after exit.
func (m *Monitor) releaseLED() {
	if err := m.ctrl.SetPinMode(m.cfg.LEDPin, gpio.Input); err != nil {
		m.log.WithError(err).WithField("pin", m.cfg.LEDPin).Warn("revert led to input failed")
	}
	m.closePin(m.cfg.LEDPin)
}

func (m *Monitor) closePin(id int) {
	if err := m.ctrl.ClosePin(id); err != nil {
		m.log.WithError(err).WithField("pin", id).Warn("close pin failed")
	}
}

type syncer interface {
	Sync() error
}

type flusher interface {
	Flush() error
}

// flush pushes buffered log output to its destination.
func (m *Monitor) flush() {
	switch w := m.log.Out.(type) {
	case flusher:
		_ = w.Flush()
	case syncer:
		_ = w.Sync()
	}
}
