// Package logging constructs the process-wide zerolog.Logger and the
// per-component child loggers handed to collaborators, following the same
// logger.With().Str("component", ...).Logger() convention used throughout
// the order and position-tracking packages.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vegasstrategy/config"
)

// New builds the root logger from a LoggingConfig: JSON to stdout/stderr/file
// by default, or a human-readable console writer when JSONFormat is false.
func New(cfg config.LoggingConfig) (zerolog.Logger, error) {
	var w io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Logger{}, err
		}
		w = f
	}

	if !cfg.JSONFormat {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	logger := zerolog.New(w).With().Timestamp()
	if cfg.IncludeFile {
		logger = logger.Caller()
	}
	return logger.Logger(), nil
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged for one collaborator or engine
// stream, mirroring NewPositionTracker's logger.With().Str("component", ...).
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}

// Stream returns a child logger tagged for one (instrument, period)
// execution stream, used by the scheduler and live engine.
func Stream(base zerolog.Logger, instrument, period string) zerolog.Logger {
	return base.With().Str("instrument", instrument).Str("period", period).Logger()
}
