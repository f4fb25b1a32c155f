// Package logger owns the process-wide structured logger.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It is constructed once at startup by
// Init and never re-entered; components derive scoped loggers from it with
// With().
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// Init configures the global logger from LOG_LEVEL / LOG_FORMAT. Call once
// from each process's main before anything else touches Logger.
func Init(level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	if format == "console" {
		Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
			Timestamp().
			Logger().
			Level(lvl)
		return
	}

	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// Component returns a logger scoped to the named subsystem, the way every
// service in the pack tags its component loggers.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
