// Package logging builds the process logger. The TUI owns the terminal,
// so log records go to a size-rotated file instead of stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultPath is where the log file lives unless overridden.
const DefaultPath = "~/.local/state/tunerwatch/tunerwatch.log"

// Options selects the log destination and shape.
type Options struct {
	// Path of the log file. Required unless Writer is set.
	Path string
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// Format is text or json. Empty means text.
	Format string

	// Writer replaces the rotating file. Used by tests.
	Writer io.Writer

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a logger and a function that closes its file.
func New(opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	closer := func() error { return nil }
	w := opts.Writer
	if w == nil {
		if strings.TrimSpace(opts.Path) == "" {
			return nil, nil, fmt.Errorf("log path is empty")
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Clean(opts.Path),
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		}
		w = rotator
		closer = rotator.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q (want text or json)", opts.Format)
	}
	return slog.New(handler), closer, nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", name)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
