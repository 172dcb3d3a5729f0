package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expect    slog.Level
		expectErr bool
	}{
		{"debug", "debug", slog.LevelDebug, false},
		{"default-info", "", slog.LevelInfo, false},
		{"warn", "WARNING", slog.LevelWarn, false},
		{"error", "error", slog.LevelError, false},
		{"invalid", "verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := levelFromString(tt.input)
			if tt.expectErr {
				if err == nil || !strings.Contains(err.Error(), "invalid log level") {
					t.Fatalf("expected invalid level error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if level != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, level)
			}
		})
	}
}

func TestNewWritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mellow.log")
	log, closer, err := New(Config{Level: "info", Environment: "prod", File: path})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Info("reminder scheduled", "task", "t1")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"reminder scheduled"`) || !strings.Contains(string(raw), `"task":"t1"`) {
		t.Fatalf("expected JSON record, got %s", raw)
	}
}

func TestHandlerFormatByEnvironment(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newHandler(&buf, "dev", slog.LevelDebug, false)).Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error")
	}
}
