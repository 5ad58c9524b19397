// Package logging builds the charmbracelet/log loggers used by the
// agentbridge command.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Options holds configuration for a diagnostics logger.
type Options struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
	Prefix          string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Level:           log.InfoLevel,
		Formatter:       log.TextFormatter,
		ReportTimestamp: true,
		Prefix:          "agentbridge",
	}
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		Prefix:          opts.Prefix,
	})
}

// FromConfig creates a logger from string level and format names, as they
// appear in config files and flags.
func FromConfig(w io.Writer, level, format string) (*log.Logger, error) {
	opts := DefaultOptions()
	var err error
	if opts.Level, err = ParseLevel(level); err != nil {
		return nil, err
	}
	if opts.Formatter, err = ParseFormatter(format); err != nil {
		return nil, err
	}
	return New(w, opts), nil
}

// ParseLevel parses a level name. The empty string means info.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q (want debug, info, warn or error)", level)
	}
}

// ParseFormatter parses a formatter name. The empty string means text.
func ParseFormatter(format string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("logging: unknown format %q (want text, json or logfmt)", format)
	}
}
