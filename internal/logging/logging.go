package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds a zerolog logger writing to w in the given format. The level is
// applied globally so it can be changed at runtime with SetLevel.
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	if err := SetLevel(level); err != nil {
		return zerolog.Nop(), err
	}

	switch strings.ToLower(format) {
	case "", FormatJSON:
	case FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format: %s", format)
	}

	return zerolog.New(w).With().Timestamp().Logger(), nil
}

// SetLevel changes the global log level. An empty level means info.
func SetLevel(level string) error {
	if level == "" {
		level = zerolog.InfoLevel.String()
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
