package gpio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// FakeController is a test double that replays scripted edges and records
// every pin operation.
type FakeController struct {
	mu sync.Mutex

	// Edges contains scripted edges. Each WaitForEdge call consumes the next
	// edge selected by its mask; unselected edges are skipped.
	Edges []Edge

	// Exhausted, if set, is called once when the script has been consumed.
	Exhausted func()

	// Unsupported lists modes IsPinModeSupported reports as unavailable.
	Unsupported map[Mode]bool

	// OpenErrors, if set for a pin, is returned (wrapped) by OpenPin.
	OpenErrors map[int]error

	// WriteError, if set, will be returned by Write.
	WriteError error

	// WaitError, if set, is returned by WaitForEdge once the script is consumed.
	WaitError error

	// Levels holds the level Read returns per pin; writes update it.
	Levels map[int]Level

	// Opens records OpenPin and OpenOutput calls that succeeded, in order.
	Opens []PinCall

	// Initial records the level each output was acquired at.
	Initial map[int]Level

	// Modes records SetPinMode calls, in order.
	Modes []PinCall

	// Writes records Write calls, in order.
	Writes []WriteCall

	// Closes records ClosePin calls, in order.
	Closes []int

	// Closed tracks if Close was called.
	Closed bool

	index     int
	exhausted bool
	open      map[int]Mode
	waitCalls int
}

// PinCall records a pin and mode.
type PinCall struct {
	Pin  int
	Mode Mode
}

// WriteCall records a pin and the level written to it.
type WriteCall struct {
	Pin   int
	Level Level
}

// NewFakeController creates a FakeController with the given edge script.
func NewFakeController(edges ...Edge) *FakeController {
	return &FakeController{Edges: edges}
}

func (f *FakeController) OpenPin(id int, mode Mode) error {
	return f.acquire(id, mode, Low)
}

func (f *FakeController) OpenOutput(id int, initial Level) error {
	return f.acquire(id, Output, initial)
}

func (f *FakeController) acquire(id int, mode Mode, initial Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.OpenErrors[id]; err != nil {
		return &AcquisitionError{Pin: id, Mode: mode, Err: err}
	}
	if f.Unsupported[mode] {
		return &AcquisitionError{Pin: id, Mode: mode, Err: ErrUnsupportedMode}
	}
	if _, ok := f.open[id]; ok {
		return &AcquisitionError{Pin: id, Mode: mode, Err: ErrAlreadyOpen}
	}
	if f.open == nil {
		f.open = make(map[int]Mode)
	}
	f.open[id] = mode
	f.Opens = append(f.Opens, PinCall{Pin: id, Mode: mode})
	if mode == Output {
		if f.Initial == nil {
			f.Initial = make(map[int]Level)
		}
		if f.Levels == nil {
			f.Levels = make(map[int]Level)
		}
		f.Initial[id] = initial
		f.Levels[id] = initial
	}
	return nil
}

func (f *FakeController) IsPinModeSupported(id int, mode Mode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return id >= 0 && !f.Unsupported[mode]
}

func (f *FakeController) SetPinMode(id int, mode Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.open[id]; !ok {
		return fmt.Errorf("pin %d: %w", id, ErrNotOpen)
	}
	if f.Unsupported[mode] {
		return fmt.Errorf("set pin %d mode %s: %w", id, mode, ErrUnsupportedMode)
	}
	f.open[id] = mode
	f.Modes = append(f.Modes, PinCall{Pin: id, Mode: mode})
	return nil
}

func (f *FakeController) Read(id int) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.open[id]; !ok {
		return Low, fmt.Errorf("pin %d: %w", id, ErrNotOpen)
	}
	return f.Levels[id], nil
}

func (f *FakeController) Write(id int, level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	mode, ok := f.open[id]
	if !ok {
		return fmt.Errorf("pin %d: %w", id, ErrNotOpen)
	}
	if mode != Output {
		return fmt.Errorf("write pin %d: %w", id, ErrNotOutput)
	}
	if f.Levels == nil {
		f.Levels = make(map[int]Level)
	}
	f.Levels[id] = level
	f.Writes = append(f.Writes, WriteCall{Pin: id, Level: level})
	return nil
}

// WaitForEdge returns the next scripted edge. Once the script is consumed it
// returns WaitError if set, otherwise it blocks until ctx is done.
func (f *FakeController) WaitForEdge(ctx context.Context, id int, edges EdgeMask) (EdgeEvent, error) {
	f.mu.Lock()
	f.waitCalls++
	if _, ok := f.open[id]; !ok {
		f.mu.Unlock()
		return EdgeEvent{}, fmt.Errorf("pin %d: %w", id, ErrNotOpen)
	}
	if ctx.Err() != nil {
		f.mu.Unlock()
		return EdgeEvent{TimedOut: true, Time: time.Now()}, nil
	}
	for f.index < len(f.Edges) {
		e := f.Edges[f.index]
		f.index++
		if edges.Has(e) {
			f.mu.Unlock()
			return EdgeEvent{Edge: e, Time: time.Now()}, nil
		}
	}
	notify := !f.exhausted
	f.exhausted = true
	hook := f.Exhausted
	waitErr := f.WaitError
	f.mu.Unlock()

	if notify && hook != nil {
		hook()
	}
	if waitErr != nil {
		return EdgeEvent{}, waitErr
	}
	<-ctx.Done()
	return EdgeEvent{TimedOut: true, Time: time.Now()}, nil
}

func (f *FakeController) ClosePin(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.open[id]; !ok {
		return fmt.Errorf("close pin %d: %w", id, ErrNotOpen)
	}
	delete(f.open, id)
	f.Closes = append(f.Closes, id)
	return nil
}

// Close marks the controller as closed and releases any open pins.
func (f *FakeController) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = nil
	f.Closed = true
	return nil
}

// Open returns the pins currently open, sorted.
func (f *FakeController) Open() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.open))
	for id := range f.open {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// WaitCalls returns the number of WaitForEdge calls made.
func (f *FakeController) WaitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitCalls
}

// LEDWrites returns the levels written to pin, in order.
func (f *FakeController) LEDWrites(pin int) []Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Level
	for _, w := range f.Writes {
		if w.Pin == pin {
			out = append(out, w.Level)
		}
	}
	return out
}

var _ Controller = (*FakeController)(nil)
