//go:build !linux

package gpio

import (
	"context"
	"errors"
)

var errUnsupportedPlatform = errors.New("gpio: not supported on this platform (requires Linux)")

// ChipController is not available on non-Linux platforms.
type ChipController struct{}

// NewChipController returns an error on non-Linux platforms.
func NewChipController(chip string, scheme Scheme) (*ChipController, error) {
	return nil, errUnsupportedPlatform
}

func (c *ChipController) OpenPin(id int, mode Mode) error {
	return &AcquisitionError{Pin: id, Mode: mode, Err: errUnsupportedPlatform}
}

func (c *ChipController) OpenOutput(id int, initial Level) error {
	return &AcquisitionError{Pin: id, Mode: Output, Err: errUnsupportedPlatform}
}

func (c *ChipController) IsPinModeSupported(id int, mode Mode) bool { return false }

func (c *ChipController) SetPinMode(id int, mode Mode) error { return errUnsupportedPlatform }

func (c *ChipController) Read(id int) (Level, error) { return Low, errUnsupportedPlatform }

func (c *ChipController) Write(id int, level Level) error { return errUnsupportedPlatform }

func (c *ChipController) WaitForEdge(ctx context.Context, id int, edges EdgeMask) (EdgeEvent, error) {
	return EdgeEvent{}, errUnsupportedPlatform
}

func (c *ChipController) ClosePin(id int) error { return errUnsupportedPlatform }

func (c *ChipController) Close() error { return nil }
