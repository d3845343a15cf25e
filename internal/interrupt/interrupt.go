// Package interrupt turns the first operator interrupt into a cancellation.
//
// The first signal is consumed and cancels; the handler then deregisters
// itself so a second signal gets the default (fatal) behaviour, giving the
// operator a forced exit if shutdown hangs.
package interrupt

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Replaced in tests.
var (
	notify = signal.Notify
	stop   = signal.Stop
)

// Signal is the cancellation cause set when an interrupt is received.
type Signal struct {
	os.Signal
}

func (s *Signal) Error() string {
	return fmt.Sprintf("received %v", s.Signal)
}

// Handler is an installed one-shot interrupt handler.
type Handler struct {
	sig      chan os.Signal
	done     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
}

// Install registers for signals (SIGINT and SIGTERM if none are given) and
// calls cancel with a *Signal cause on the first one received.
func Install(cancel context.CancelCauseFunc, signals ...os.Signal) *Handler {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	h := &Handler{
		sig:  make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
	notify(h.sig, signals...)
	go h.wait(cancel)
	return h
}

func (h *Handler) wait(cancel context.CancelCauseFunc) {
	select {
	case s := <-h.sig:
		h.deregister()
		cancel(&Signal{Signal: s})
	case <-h.done:
	}
}

func (h *Handler) deregister() {
	h.stopOnce.Do(func() { stop(h.sig) })
}

// Stop deregisters the handler without cancelling.
func (h *Handler) Stop() {
	h.deregister()
	h.doneOnce.Do(func() { close(h.done) })
}

// Cause returns the signal that cancelled ctx, or nil.
func Cause(ctx context.Context) os.Signal {
	if s, ok := context.Cause(ctx).(*Signal); ok {
		return s.Signal
	}
	return nil
}
