// Package logging builds the service's zerolog logger.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w. format "console" selects the
// human-readable writer; anything else writes JSON lines.
func New(w io.Writer, format, level string) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", level, err)
	}

	writer := w
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		writer = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", "mysterria-translator").
		Logger()

	return logger, nil
}

// Debug lowers level to debug when enabled is set, matching the legacy
// top-level debug switch.
func Debug(level string, enabled bool) string {
	if enabled {
		return "debug"
	}
	return level
}
