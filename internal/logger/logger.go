// Package logger provides a lightweight, centralized logging facility
// with configurable verbosity levels.
//
// Design goals:
//   - Simple API (Errorf, Infof, Debugf, Tracef)
//   - Centralized verbosity control
//   - Zero formatting logic at call sites
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("event=engine_start")
//	logger.Debugf("event=price spot=%f vol=%f", spot, vol)
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

// current holds the active verbosity level.
// Only messages with level <= current are logged.
var current Level = Info

// zl is the zerolog backend. Console output goes to stderr so logs stay
// separated from report output on stdout.
var zl = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// SetVerbosity sets the global logging verbosity.
// Typically called once during application startup
// (e.g. after parsing CLI flags).
func SetVerbosity(v int) {
	if v < int(Error) {
		v = int(Error)
	}
	if v > int(Trace) {
		v = int(Trace)
	}
	current = Level(v)

	switch current {
	case Error:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case Info:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case Debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case Trace:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	if current >= Error {
		zl.Error().Msgf(format, args...)
	}
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	if current >= Info {
		zl.Info().Msgf(format, args...)
	}
}

// Debugf logs debugging information.
// Use this for diagnostic output useful during development.
func Debugf(format string, args ...any) {
	if current >= Debug {
		zl.Debug().Msgf(format, args...)
	}
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	if current >= Trace {
		zl.Trace().Msgf(format, args...)
	}
}
