// Package logging builds the structured loggers used across augprov.
//
// Loggers are plain *slog.Logger values. Each component derives its own
// logger with For, which adds a subsystem attribute:
//
//	logger, err := logging.New("debug", os.Stderr)
//	log := logging.For(logger, "session")
//	log.Info("opened file", "file", "/etc/hosts")
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Subsystem names used in log records.
const (
	SubsystemCLI      = "cli"
	SubsystemSession  = "session"
	SubsystemProvider = "provider"
)

// ParseLevel converts a level name (debug, info, warn, error) to a slog level.
// The empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New returns a text logger writing records at or above level to w.
func New(level string, w io.Writer) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// For returns a logger that tags records with subsystem.
func For(logger *slog.Logger, subsystem string) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	return logger.With(slog.String("subsystem", subsystem))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
