// Package logger builds the slog logger used across mellow. The TUI owns
// stdout, so interactive sessions log to a rotating file instead.
package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level (debug/info/warn/error), format (prod = JSON, anything
// else = text) and destination. An empty File logs to stderr.
type Config struct {
	Level       string
	Environment string
	File        string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	WithSource  bool
}

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + level)
	}
}

// New returns a logger and a closer for its destination.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	lvl, err := levelFromString(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if strings.TrimSpace(cfg.File) != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 10),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   true,
		}
		w, closer = rotating, rotating
	}

	return slog.New(newHandler(w, cfg.Environment, lvl, cfg.WithSource)), closer, nil
}

func newHandler(w io.Writer, env string, lvl slog.Level, withSource bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: lvl, AddSource: withSource}
	if strings.EqualFold(env, "prod") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Discard drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
