package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelTrace = "trace"
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Configure installs a process-wide slog default logger.
//
// Supported levels: trace, debug, info, warn, error. slog has no native
// trace level, so "trace" maps to debug with a "trace_hint" attribute
// operators can grep for.
func Configure(level string) error {
	parsed, trace, err := parseLevel(level)
	if err != nil {
		return err
	}

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parsed})
	logger := slog.New(h)
	if trace {
		logger = logger.With("trace_hint", true)
	}
	slog.SetDefault(logger)
	return nil
}

func parseLevel(level string) (lvl slog.Level, trace bool, err error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", LevelInfo:
		return slog.LevelInfo, false, nil
	case LevelTrace:
		return slog.LevelDebug, true, nil
	case LevelDebug:
		return slog.LevelDebug, false, nil
	case LevelWarn:
		return slog.LevelWarn, false, nil
	case LevelError:
		return slog.LevelError, false, nil
	default:
		return 0, false, fmt.Errorf("invalid log level %q", level)
	}
}
