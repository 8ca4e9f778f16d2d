// Package logging configures the process-wide zerolog logger shared by
// the Manager and Worker.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls where and how the logger writes.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// LogFile, if non-empty, receives log output instead of stderr.
	LogFile string
	// Component tags every event, e.g. "manager" or "worker".
	Component string
}

// Init builds a component-scoped logger from cfg. A bad LogFile path
// falls back to stderr rather than aborting startup.
func Init(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			out = f
		}
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Str("component", cfg.Component).
		Logger()

	return logger
}
