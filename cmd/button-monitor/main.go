// Command button-monitor watches a GPIO button, mirrors it on an LED and
// logs every press and release until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sweeney/button-monitor/internal/config"
	"github.com/sweeney/button-monitor/internal/gpio"
	"github.com/sweeney/button-monitor/internal/interrupt"
	"github.com/sweeney/button-monitor/internal/logger"
	"github.com/sweeney/button-monitor/internal/monitor"
	"github.com/sweeney/button-monitor/internal/mqtt"
	"github.com/sweeney/button-monitor/internal/status"
	"github.com/sweeney/button-monitor/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// loggedError marks an error that has already been written to the log.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string { return e.err.Error() }

func (e *loggedError) Unwrap() error { return e.err }

// logError logs err and marks it so it is not reported twice.
func logError(log logrus.FieldLogger, msg string, err error) error {
	log.WithError(err).Error(msg)
	return &loggedError{err: err}
}

// reportError prints errors raised before the logger existed, such as flag
// and settings errors.
func reportError(w io.Writer, err error) {
	var le *loggedError
	if errors.As(err, &le) {
		return
	}
	fmt.Fprintln(w, "Error:", err)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "button-monitor",
		Short: "Watch a GPIO button and mirror it on an LED",
		Long: `button-monitor waits for edges on a button pin, logs every press and
release, and drives an optional LED to follow the button. It runs until
interrupted with SIGINT or SIGTERM.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runE,
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runE(cmd *cobra.Command, _ []string) error {
	fs := cmd.Flags()
	envFile, _ := fs.GetString("env-file")
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	settings, err := config.Load(fs)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(settings.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	ctrl, err := gpio.NewChipController(settings.Chip, settings.Monitor.Scheme)
	if err != nil {
		return logError(log, "init gpio", fmt.Errorf("init gpio: %w", err))
	}
	defer ctrl.Close()

	if ps, _ := fs.GetBool("print-state"); ps {
		return printState(cmd.OutOrStdout(), ctrl, settings.Monitor)
	}

	var pub mqtt.Publisher
	if settings.Broker != "" {
		rp, err := mqtt.NewRealPublisher(settings.Broker, settings.Topic, log)
		if err != nil {
			return logError(log, "init mqtt", fmt.Errorf("init mqtt: %w", err))
		}
		defer rp.Close()
		pub = rp
	}

	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)
	h := interrupt.Install(cancel)
	defer h.Stop()

	if err := run(ctx, ctrl, pub, settings, log); err != nil {
		return logError(log, "fatal", err)
	}
	return nil
}

// run monitors the button until ctx is cancelled. pub may be nil.
func run(ctx context.Context, ctrl gpio.Controller, pub mqtt.Publisher, s config.Settings, log *logrus.Logger) error {
	tracker := status.NewTracker(time.Now(), status.Config{
		Monitor:  s.Monitor,
		Chip:     s.Chip,
		Broker:   s.Broker,
		Topic:    s.Topic,
		HTTPAddr: s.HTTPAddr,
	})

	sinks := []monitor.Sink{tracker}
	if pub != nil {
		sinks = append(sinks, mqtt.Sink(pub))
		publishSystem(pub, tracker, "STARTUP", "", log)
	}

	if s.HTTPAddr != "" {
		srv := web.New(s.HTTPAddr, tracker, log)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server")
			}
		}()
		defer func() {
			sctx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			srv.Shutdown(sctx)
		}()
		log.Infof("http status server listening on %s", s.HTTPAddr)
	}

	err := monitor.New(ctrl, s.Monitor, log, sinks...).Run(ctx)

	if pub != nil {
		publishSystem(pub, tracker, "SHUTDOWN", shutdownReason(ctx, err), log)
	}
	return err
}

// publishSystem sends a retained lifecycle event carrying a status snapshot.
func publishSystem(pub mqtt.Publisher, tracker *status.Tracker, event, reason string, log logrus.FieldLogger) {
	if cs, ok := pub.(mqtt.ConnectionStatus); ok {
		tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := tracker.Snapshot()
	err := pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.WithError(err).Warnf("failed to publish %s event", event)
		return
	}
	log.Debugf("published %s event", event)
}

func shutdownReason(ctx context.Context, err error) string {
	if err != nil {
		return "ERROR"
	}
	switch interrupt.Cause(ctx) {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// printState reads the button once and reports its level.
func printState(w io.Writer, ctrl gpio.Controller, cfg monitor.Config) error {
	if err := ctrl.OpenPin(cfg.ButtonPin, gpio.Input); err != nil {
		return err
	}
	defer ctrl.ClosePin(cfg.ButtonPin)

	level, err := ctrl.Read(cfg.ButtonPin)
	if err != nil {
		return fmt.Errorf("read pin %d: %w", cfg.ButtonPin, err)
	}
	// A button pressed on a rising edge reads high while held.
	state := "released"
	if (level == gpio.High) == (cfg.PressedEdge == gpio.Rising) {
		state = "pressed"
	}
	fmt.Fprintf(w, "pin %d: %s (%s)\n", cfg.ButtonPin, level, state)
	return nil
}
