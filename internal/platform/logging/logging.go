// Package logging builds the zerolog logger shared by the process.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"yahtzee/internal/config"
)

// New returns a logger writing to stderr.
func New(cfg config.Log) (zerolog.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter returns a logger writing to out.
func NewWithWriter(cfg config.Log, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
