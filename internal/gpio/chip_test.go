//go:build linux

package gpio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiocdev"
	"github.com/warthog618/go-gpiosim"
)

const eventWait = time.Second

// newSimController returns a controller on a simulated six-line chip. The
// test is skipped when the gpio-sim kernel module is not available.
func newSimController(t *testing.T) (*ChipController, *gpiosim.Simpleton) {
	t.Helper()
	s, err := gpiosim.NewSimpleton(6)
	if err != nil {
		t.Skip("gpio-sim not available:", err)
	}
	t.Cleanup(func() { s.Close() })

	c, err := NewChipController(s.DevPath(), Logical)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, s
}

func waitEdge(t *testing.T, c *ChipController, id int, edges EdgeMask) EdgeEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), eventWait)
	defer cancel()
	ev, err := c.WaitForEdge(ctx, id, edges)
	require.NoError(t, err)
	require.False(t, ev.TimedOut, "no edge within %v", eventWait)
	return ev
}

func TestChipControllerEdgeMapping(t *testing.T) {
	c, s := newSimController(t)
	require.NoError(t, c.OpenPin(1, Input))

	require.NoError(t, s.SetPull(1, 1))
	ev := waitEdge(t, c, 1, BothEdges)
	assert.Equal(t, Rising, ev.Edge)
	assert.False(t, ev.Time.IsZero())

	require.NoError(t, s.SetPull(1, 0))
	assert.Equal(t, Falling, waitEdge(t, c, 1, BothEdges).Edge)
}

func TestChipControllerRead(t *testing.T) {
	c, s := newSimController(t)
	require.NoError(t, c.OpenPin(1, Input))

	lvl, err := c.Read(1)
	require.NoError(t, err)
	assert.Equal(t, Low, lvl)

	require.NoError(t, s.SetPull(1, 1))
	lvl, err = c.Read(1)
	require.NoError(t, err)
	assert.Equal(t, High, lvl)
}

func TestChipControllerMaskSkipsEdges(t *testing.T) {
	c, s := newSimController(t)
	require.NoError(t, c.OpenPin(2, Input))

	require.NoError(t, s.SetPull(2, 1))
	require.NoError(t, s.SetPull(2, 0))
	assert.Equal(t, Falling, waitEdge(t, c, 2, FallingEdges).Edge)

	require.NoError(t, s.SetPull(2, 1))
	assert.Equal(t, Rising, waitEdge(t, c, 2, RisingEdges).Edge)
}

func TestChipControllerCancelledWait(t *testing.T) {
	c, _ := newSimController(t)
	require.NoError(t, c.OpenPin(1, Input))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ev, err := c.WaitForEdge(ctx, 1, BothEdges)
	require.NoError(t, err)
	assert.True(t, ev.TimedOut)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ev, err = c.WaitForEdge(ctx, 1, BothEdges)
	require.NoError(t, err)
	assert.True(t, ev.TimedOut)
}

func TestChipControllerClosePinUnblocksWait(t *testing.T) {
	c, _ := newSimController(t)
	require.NoError(t, c.OpenPin(1, Input))

	done := make(chan error, 1)
	go func() {
		_, err := c.WaitForEdge(context.Background(), 1, BothEdges)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.ClosePin(1))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNotOpen)
	case <-time.After(eventWait):
		t.Fatal("WaitForEdge still blocked after ClosePin")
	}
	assert.ErrorIs(t, c.ClosePin(1), ErrNotOpen)
}

func TestChipControllerClosePinWithFullEventQueue(t *testing.T) {
	c, s := newSimController(t)
	require.NoError(t, c.OpenPin(1, Input))

	// Nobody waits, so the queue fills and the watcher blocks in the handler.
	for i := 0; i < eventBuffer+8; i++ {
		require.NoError(t, s.SetPull(1, (i+1)&1))
	}
	time.Sleep(50 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- c.ClosePin(1) }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(eventWait):
		t.Fatal("ClosePin blocked by a full event queue")
	}
}

func TestChipControllerDoubleOpen(t *testing.T) {
	c, _ := newSimController(t)
	require.NoError(t, c.OpenPin(2, Input))

	err := c.OpenPin(2, Output)
	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, 2, acqErr.Pin)
	assert.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestChipControllerInvalidPin(t *testing.T) {
	c, _ := newSimController(t)

	assert.False(t, c.IsPinModeSupported(6, Input))
	assert.False(t, c.IsPinModeSupported(-1, Input))
	var acqErr *AcquisitionError
	assert.ErrorAs(t, c.OpenPin(-1, Input), &acqErr)
	assert.ErrorIs(t, c.OpenPin(6, Input), ErrUnsupportedMode)
}

func TestChipControllerOutputInitialLevel(t *testing.T) {
	c, s := newSimController(t)
	require.NoError(t, c.OpenOutput(4, High))
	require.NoError(t, c.OpenPin(5, Output))

	v, err := s.Level(4)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "acquired high")

	v, err = s.Level(5)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestChipControllerSetPinModeRevertsOutput(t *testing.T) {
	c, s := newSimController(t)
	require.NoError(t, c.OpenOutput(3, High))

	require.NoError(t, c.Write(3, Low))
	v, err := s.Level(3)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, c.SetPinMode(3, Input))
	assert.ErrorIs(t, c.Write(3, High), ErrNotOutput)

	inf, err := c.chip.LineInfo(3)
	require.NoError(t, err)
	assert.Equal(t, gpiocdev.LineDirectionInput, inf.Config.Direction)

	// Switching back to output keeps the level the line reads.
	require.NoError(t, s.SetPull(3, 1))
	require.NoError(t, c.SetPinMode(3, Output))
	v, err = s.Level(3)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestChipControllerWaitOnOutput(t *testing.T) {
	c, _ := newSimController(t)
	require.NoError(t, c.OpenPin(3, Output))

	_, err := c.WaitForEdge(context.Background(), 3, BothEdges)
	assert.ErrorIs(t, err, ErrNotInput)
}

func TestChipControllerPullUpSupport(t *testing.T) {
	c, _ := newSimController(t)

	v2 := c.chip.UapiAbiVersion() >= 2
	assert.Equal(t, v2, c.IsPinModeSupported(0, InputPullUp))
	if !v2 {
		assert.ErrorIs(t, c.OpenPin(0, InputPullUp), ErrUnsupportedMode)
		return
	}

	require.NoError(t, c.OpenPin(0, InputPullUp))
	inf, err := c.chip.LineInfo(0)
	require.NoError(t, err)
	assert.Equal(t, gpiocdev.LineBiasPullUp, inf.Config.Bias)
	assert.Equal(t, Consumer, inf.Consumer)
}

func TestChipControllerCloseReleasesLines(t *testing.T) {
	c, s := newSimController(t)
	require.NoError(t, c.OpenPin(1, Input))
	require.NoError(t, c.OpenOutput(2, High))

	require.NoError(t, c.Close())

	chip, err := gpiocdev.NewChip(s.DevPath())
	require.NoError(t, err)
	defer chip.Close()
	for _, offset := range []int{1, 2} {
		inf, err := chip.LineInfo(offset)
		require.NoError(t, err)
		assert.False(t, inf.Used, "line %d", offset)
	}
}
