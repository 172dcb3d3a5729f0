package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "mellow.db" || cfg.StateFile != ".mellow_state.json" {
		t.Fatalf("unexpected path defaults: %+v", cfg)
	}
	if cfg.ReminderLead != 5*time.Minute || cfg.PollInterval != 2*time.Second || cfg.SchedulerBuffer != 64 {
		t.Fatalf("unexpected runtime defaults: %+v", cfg)
	}
	if cfg.DesktopNotifications {
		t.Fatal("desktop notifications should default to off")
	}
	if cfg.Log.Level != "info" || cfg.Log.File != "mellow.log" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("MELLOW_DESKTOP_NOTIFICATIONS", "true")
	t.Setenv("MELLOW_REMINDER_LEAD", "10m")
	t.Setenv("MELLOW_SCHEDULER_BUFFER", "128")
	t.Setenv("MELLOW_STATE_FILE", "state/custom.json")
	t.Setenv("MELLOW_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.DesktopNotifications {
		t.Fatal("expected desktop notifications true from env")
	}
	if cfg.ReminderLead != 10*time.Minute || cfg.SchedulerBuffer != 128 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.StateFile != "state/custom.json" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if got := cfg.Logger(); got.Level != "debug" || got.File != "mellow.log" {
		t.Fatalf("unexpected logger config: %+v", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mellow.yaml")
	body := "db_path: /tmp/tasks.db\npoll_interval: 500ms\nlog:\n  environment: prod\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MELLOW_SCHEDULER_BUFFER", "32")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/tasks.db" || cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Log.Environment != "prod" {
		t.Fatalf("nested file values not applied: %+v", cfg.Log)
	}
	if cfg.SchedulerBuffer != 32 {
		t.Fatalf("env should still apply on top of the file: %+v", cfg)
	}
}

func TestLoadMissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("MELLOW_DB", "from-env.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "from-env.db" {
		t.Fatalf("expected env fallback, got %+v", cfg)
	}
}

func TestLoadPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mellow.yaml")
	if err := os.WriteFile(path, []byte("state_file: custom-state.json\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(PathEnv, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateFile != "custom-state.json" {
		t.Fatalf("expected config path from %s, got %+v", PathEnv, cfg)
	}
}

func TestValidateRejectsNonPositiveSettings(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("MELLOW_REMINDER_LEAD", "0s")
	t.Setenv("MELLOW_SCHEDULER_BUFFER", "-1")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "reminder_lead") || !strings.Contains(err.Error(), "scheduler_buffer") {
		t.Fatalf("expected both problems reported, got: %v", err)
	}
}

func TestUsageListsVariables(t *testing.T) {
	usage := Usage()
	if !strings.Contains(usage, "MELLOW_DB") || !strings.Contains(usage, "MELLOW_REMINDER_LEAD") {
		t.Fatalf("usage missing variables: %s", usage)
	}
}
