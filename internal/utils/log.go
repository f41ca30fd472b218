package utils

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Log is the logger shared by every step of a run.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// SetLogger configures the global logger. Debug can be forced with BLISS_BOOT_DEBUG.
func SetLogger(debug bool) {
	SetLoggerOutput(os.Stderr, debug)
}

// SetLoggerOutput is SetLogger with a custom writer, tests use it to capture output.
func SetLoggerOutput(out io.Writer, debug bool) {
	level := zerolog.InfoLevel
	if debug || os.Getenv("BLISS_BOOT_DEBUG") != "" {
		level = zerolog.DebugLevel
	}

	Log = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
