// Package logging builds the slog handlers used by the portal commands.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// HandlerText returns a human readable handler writing to w (stderr when
// nil). "trace" reports timestamps and callers, "debug" timestamps only.
func HandlerText(level string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}

	reportCaller := false
	reportTimestamp := false
	lvl := log.InfoLevel
	switch strings.ToLower(level) {
	case "trace":
		reportCaller = true
		reportTimestamp = true
		lvl = log.DebugLevel
	case "debug":
		reportTimestamp = true
		lvl = log.DebugLevel
	case "warn", "warning":
		lvl = log.WarnLevel
	case "error":
		lvl = log.ErrorLevel
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: reportTimestamp,
		ReportCaller:    reportCaller,
		Level:           lvl,
		Prefix:          "portal",
	})
}

// HandlerJSON returns a JSON handler writing to w (stderr when nil).
func HandlerJSON(level string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch strings.ToLower(level) {
	case "trace":
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn", "warning":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}
	return slog.NewJSONHandler(w, opts)
}

// New returns a logger in the given format and level.
func New(format, level string, w io.Writer) (*slog.Logger, error) {
	if err := ValidLevel(level); err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.New(HandlerText(level, w)), nil
	case FormatJSON:
		return slog.New(HandlerJSON(level, w)), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
}

// ValidLevel reports whether level is a known level name. Empty means info.
func ValidLevel(level string) error {
	switch strings.ToLower(level) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level %q", level)
}
