// Package logger builds the process logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config selects the log level, format and destination.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output string // stdout, stderr or a file path
}

// New creates a configured *logrus.Logger.
// The returned closer flushes and closes the output and should be deferred.
func New(cfg Config) (*logrus.Logger, func() error, error) {
	out, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(parseLevel(cfg.Level))

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, closer, nil
}

func parseLevel(s string) logrus.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func openOutput(output string) (io.Writer, func() error, error) {
	switch strings.ToLower(output) {
	case "stdout", "":
		return os.Stdout, syncQuietly(os.Stdout), nil
	case "stderr":
		return os.Stderr, syncQuietly(os.Stderr), nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return f, func() error {
			if err := f.Sync(); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}, nil
	}
}

// syncQuietly ignores Sync errors: terminals and pipes do not support fsync.
func syncQuietly(f *os.File) func() error {
	return func() error {
		_ = f.Sync()
		return nil
	}
}
