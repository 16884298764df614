// Package logging configures the platform's structured logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config controls how the root logger is constructed.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Pretty writes human-readable console output instead of JSON.
	// Intended for local development; production deployments want JSON.
	Pretty bool
}

// DefaultConfig returns info-level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// New builds a zerolog.Logger per cfg, writing to w (os.Stderr in production).
func New(cfg Config, w io.Writer) zerolog.Logger {
	level := parseLevel(cfg.Level)

	var output io.Writer = w
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// NewDefault builds the default logger writing to os.Stderr.
func NewDefault() zerolog.Logger {
	return New(DefaultConfig(), os.Stderr)
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
