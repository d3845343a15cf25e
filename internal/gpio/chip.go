//go:build linux

package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Consumer is the label the kernel shows for lines held by this process.
const Consumer = "button-monitor"

// eventBuffer is the number of edge events queued per input pin before the
// gpiocdev watcher blocks. The kernel keeps queuing while it is blocked.
const eventBuffer = 64

// ChipController drives pins on a GPIO character device.
type ChipController struct {
	chip   *gpiocdev.Chip
	scheme Scheme

	mu   sync.Mutex
	pins map[int]*chipPin
}

type chipPin struct {
	line   *gpiocdev.Line
	mode   Mode
	events chan gpiocdev.LineEvent // nil for outputs
	done   chan struct{}
}

// handle runs on the gpiocdev watcher goroutine.
func (p *chipPin) handle(evt gpiocdev.LineEvent) {
	select {
	case p.events <- evt:
	case <-p.done:
	}
}

// NewChipController opens the named chip (e.g. "gpiochip0").
func NewChipController(chip string, scheme Scheme) (*ChipController, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}
	return &ChipController{
		chip:   c,
		scheme: scheme,
		pins:   make(map[int]*chipPin),
	}, nil
}

// OpenPin requests the line for the pin. Inputs are requested with edge
// detection on both edges.
func (c *ChipController) OpenPin(id int, mode Mode) error {
	return c.acquire(id, mode, Low)
}

// OpenOutput requests the line as an output already at initial.
func (c *ChipController) OpenOutput(id int, initial Level) error {
	return c.acquire(id, Output, initial)
}

func (c *ChipController) acquire(id int, mode Mode, initial Level) error {
	offset, err := c.scheme.Resolve(id)
	if err != nil {
		return &AcquisitionError{Pin: id, Mode: mode, Err: err}
	}
	if !c.IsPinModeSupported(id, mode) {
		return &AcquisitionError{Pin: id, Mode: mode, Err: ErrUnsupportedMode}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pins[id]; ok {
		return &AcquisitionError{Pin: id, Mode: mode, Err: ErrAlreadyOpen}
	}

	p := &chipPin{mode: mode, done: make(chan struct{})}
	var opts []gpiocdev.LineReqOption
	switch mode {
	case Output:
		opts = append(opts, gpiocdev.AsOutput(int(initial)))
	default:
		p.events = make(chan gpiocdev.LineEvent, eventBuffer)
		opts = append(opts,
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(p.handle))
		if mode == InputPullUp {
			opts = append(opts, gpiocdev.WithPullUp)
		}
	}

	line, err := c.chip.RequestLine(offset, opts...)
	if err != nil {
		return &AcquisitionError{Pin: id, Mode: mode, Err: fmt.Errorf("request line %d: %w", offset, err)}
	}
	p.line = line
	c.pins[id] = p
	return nil
}

// IsPinModeSupported reports whether the pin maps to a line and the kernel
// uAPI can configure it in mode. Bias (pull-up) requires uAPI v2.
func (c *ChipController) IsPinModeSupported(id int, mode Mode) bool {
	offset, err := c.scheme.Resolve(id)
	if err != nil || offset >= c.chip.Lines() {
		return false
	}
	switch mode {
	case Input, Output:
		return true
	case InputPullUp:
		return c.chip.UapiAbiVersion() >= 2
	}
	return false
}

// SetPinMode reconfigures an open line. A line switched to output keeps the
// level it currently reads.
func (c *ChipController) SetPinMode(id int, mode Mode) error {
	p, err := c.pin(id)
	if err != nil {
		return err
	}
	var opts []gpiocdev.LineConfigOption
	switch mode {
	case Output:
		v, err := p.line.Value()
		if err != nil {
			return fmt.Errorf("set pin %d mode %s: %w", id, mode, err)
		}
		opts = append(opts, gpiocdev.AsOutput(v))
	case InputPullUp:
		if !c.IsPinModeSupported(id, mode) {
			return fmt.Errorf("set pin %d mode %s: %w", id, mode, ErrUnsupportedMode)
		}
		opts = append(opts, gpiocdev.AsInput, gpiocdev.WithPullUp)
	default:
		opts = append(opts, gpiocdev.AsInput)
	}
	if err := p.line.Reconfigure(opts...); err != nil {
		return fmt.Errorf("set pin %d mode %s: %w", id, mode, err)
	}
	c.mu.Lock()
	p.mode = mode
	c.mu.Unlock()
	return nil
}

// Read returns the current level of the line.
func (c *ChipController) Read(id int) (Level, error) {
	p, err := c.pin(id)
	if err != nil {
		return Low, err
	}
	v, err := p.line.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", id, err)
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

// Write sets the level of an output line.
func (c *ChipController) Write(id int, level Level) error {
	p, err := c.pin(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	mode := p.mode
	c.mu.Unlock()
	if mode != Output {
		return fmt.Errorf("write pin %d: %w", id, ErrNotOutput)
	}
	if err := p.line.SetValue(int(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", id, err)
	}
	return nil
}

// WaitForEdge blocks until an edge selected by edges arrives or ctx is done.
func (c *ChipController) WaitForEdge(ctx context.Context, id int, edges EdgeMask) (EdgeEvent, error) {
	p, err := c.pin(id)
	if err != nil {
		return EdgeEvent{}, err
	}
	if p.events == nil {
		return EdgeEvent{}, fmt.Errorf("wait for edge on pin %d: %w", id, ErrNotInput)
	}
	for {
		select {
		case <-ctx.Done():
			return EdgeEvent{TimedOut: true, Time: time.Now()}, nil
		case <-p.done:
			return EdgeEvent{}, fmt.Errorf("wait for edge on pin %d: %w", id, ErrNotOpen)
		case evt := <-p.events:
			edge := Rising
			if evt.Type == gpiocdev.LineEventFallingEdge {
				edge = Falling
			}
			if !edges.Has(edge) {
				continue
			}
			return EdgeEvent{Edge: edge, Time: time.Now()}, nil
		}
	}
}

// ClosePin releases the line.
func (c *ChipController) ClosePin(id int) error {
	c.mu.Lock()
	p, ok := c.pins[id]
	delete(c.pins, id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("close pin %d: %w", id, ErrNotOpen)
	}
	close(p.done)
	if err := p.line.Close(); err != nil {
		return fmt.Errorf("close pin %d: %w", id, err)
	}
	return nil
}

// Close releases any lines still open and the chip.
func (c *ChipController) Close() error {
	c.mu.Lock()
	ids := make([]int, 0, len(c.pins))
	for id := range c.pins {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := c.ClosePin(id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}
	return errors.Join(errs...)
}

func (c *ChipController) pin(id int) (*chipPin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pins[id]
	if !ok {
		return nil, fmt.Errorf("pin %d: %w", id, ErrNotOpen)
	}
	return p, nil
}

var _ Controller = (*ChipController)(nil)
