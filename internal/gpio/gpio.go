// Package gpio provides pin access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Controller opens, drives and watches GPIO pins.
// Pin identifiers are interpreted according to the controller's numbering scheme.
type Controller interface {
	// OpenPin acquires the pin in the given mode.
	// Returns *AcquisitionError if the pin is unavailable or already owned.
	OpenPin(id int, mode Mode) error

	// OpenOutput acquires the pin as an output driven to initial from the
	// moment it is requested. OpenPin(id, Output) is OpenOutput(id, Low).
	OpenOutput(id int, initial Level) error

	// IsPinModeSupported reports whether the pin can be configured in mode.
	IsPinModeSupported(id int, mode Mode) bool

	// SetPinMode reconfigures an open pin.
	SetPinMode(id int, mode Mode) error

	// Read returns the current level of an open pin.
	Read(id int) (Level, error)

	// Write drives an open output pin to level.
	Write(id int, level Level) error

	// WaitForEdge blocks until an edge in edges occurs on the pin or ctx is done.
	// When ctx is done the returned event has TimedOut set and the error is nil.
	WaitForEdge(ctx context.Context, id int, edges EdgeMask) (EdgeEvent, error)

	// ClosePin releases the pin.
	ClosePin(id int) error

	// Close releases the controller and any pins still open.
	Close() error
}

// Mode is the configuration a pin is opened in.
type Mode int

const (
	Input Mode = iota
	InputPullUp
	Output
)

func (m Mode) String() string {
	switch m {
	case Input:
		return "input"
	case InputPullUp:
		return "input-pullup"
	case Output:
		return "output"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Level is a logic level.
type Level int

const (
	Low Level = iota
	High
)

// Opposite returns the other level.
func (l Level) Opposite() Level {
	if l == High {
		return Low
	}
	return High
}

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// ParseLevel accepts "high"/"low" (case insensitive) and "1"/"0".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "1":
		return High, nil
	case "low", "0":
		return Low, nil
	}
	return Low, fmt.Errorf("invalid level %q (want high or low)", s)
}

// Edge is a signal transition.
type Edge int

const (
	Rising Edge = iota + 1
	Falling
)

// Opposite returns the other edge.
func (e Edge) Opposite() Edge {
	if e == Rising {
		return Falling
	}
	return Rising
}

func (e Edge) String() string {
	switch e {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	}
	return "none"
}

// ParseEdge accepts "rising"/"falling" (case insensitive).
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising":
		return Rising, nil
	case "falling":
		return Falling, nil
	}
	return 0, fmt.Errorf("invalid edge %q (want rising or falling)", s)
}

// EdgeMask selects the edges WaitForEdge returns.
type EdgeMask int

const (
	RisingEdges EdgeMask = 1 << iota
	FallingEdges

	BothEdges = RisingEdges | FallingEdges
)

// Has reports whether e is selected by the mask.
func (m EdgeMask) Has(e Edge) bool {
	switch e {
	case Rising:
		return m&RisingEdges != 0
	case Falling:
		return m&FallingEdges != 0
	}
	return false
}

// EdgeEvent is the result of WaitForEdge.
type EdgeEvent struct {
	Edge     Edge
	TimedOut bool // the wait ended without an edge
	Time     time.Time
}

var (
	// ErrNotOpen indicates the pin has not been opened by this controller.
	ErrNotOpen = errors.New("pin not open")

	// ErrAlreadyOpen indicates the pin is already owned by this controller.
	ErrAlreadyOpen = errors.New("pin already open")

	// ErrUnsupportedMode indicates the backend cannot configure the pin that way.
	ErrUnsupportedMode = errors.New("pin mode not supported")

	// ErrNotOutput indicates a write to a pin that is not an output.
	ErrNotOutput = errors.New("pin is not an output")

	// ErrNotInput indicates an edge wait on a pin that is not an input.
	ErrNotInput = errors.New("pin is not an input")
)

// AcquisitionError reports a pin that could not be opened or configured.
type AcquisitionError struct {
	Pin  int
	Mode Mode
	Err  error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire pin %d as %s: %v", e.Pin, e.Mode, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}
