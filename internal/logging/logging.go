// Package logging builds the zerolog logger the rest of the backend shares.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Options struct {
	ServiceName string
	Level       string
	// Format "console" renders human-readable output for dev shells.
	Format string
}

func New(opts Options) zerolog.Logger {
	var out = os.Stdout
	writer := zerolog.MultiLevelWriter(out)
	if strings.EqualFold(opts.Format, "console") {
		writer = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: out})
	}

	logger := zerolog.New(writer).Level(ParseLevel(opts.Level)).With().Timestamp()
	if opts.ServiceName != "" {
		logger = logger.Str("service", opts.ServiceName)
	}
	return logger.Logger()
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
