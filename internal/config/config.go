// Package config loads runtime settings from an optional YAML file and the
// MELLOW_* environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/sandeepkv93/mellow/internal/logger"
)

const PathEnv = "MELLOW_CONFIG"

type Log struct {
	Level       string `yaml:"level" env:"MELLOW_LOG_LEVEL" env-default:"info"`
	Environment string `yaml:"environment" env:"MELLOW_ENV" env-default:"dev"`
	File        string `yaml:"file" env:"MELLOW_LOG_FILE" env-default:"mellow.log"`
	MaxSizeMB   int    `yaml:"max_size_mb" env:"MELLOW_LOG_MAX_SIZE_MB" env-default:"10"`
	MaxBackups  int    `yaml:"max_backups" env:"MELLOW_LOG_MAX_BACKUPS" env-default:"3"`
}

type Config struct {
	DBPath               string        `yaml:"db_path" env:"MELLOW_DB" env-default:"mellow.db"`
	StateFile            string        `yaml:"state_file" env:"MELLOW_STATE_FILE" env-default:".mellow_state.json"`
	DesktopNotifications bool          `yaml:"desktop_notifications" env:"MELLOW_DESKTOP_NOTIFICATIONS" env-default:"false"`
	ReminderLead         time.Duration `yaml:"reminder_lead" env:"MELLOW_REMINDER_LEAD" env-default:"5m"`
	PollInterval         time.Duration `yaml:"poll_interval" env:"MELLOW_POLL_INTERVAL" env-default:"2s"`
	SchedulerBuffer      int           `yaml:"scheduler_buffer" env:"MELLOW_SCHEDULER_BUFFER" env-default:"64"`
	MetricsAddr          string        `yaml:"metrics_addr" env:"MELLOW_METRICS_ADDR"`
	Log                  Log           `yaml:"log"`
}

// Load reads path when given and present, then applies the environment on
// top. A missing file is not an error.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = os.Getenv(PathEnv)
	}

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.ReminderLead <= 0 {
		errs = append(errs, fmt.Errorf("reminder_lead must be positive, got %s", c.ReminderLead))
	}
	if c.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("poll_interval must not be negative, got %s", c.PollInterval))
	}
	if c.SchedulerBuffer <= 0 {
		errs = append(errs, fmt.Errorf("scheduler_buffer must be positive, got %d", c.SchedulerBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Logger maps the log section onto logger.Config.
func (c Config) Logger() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Environment: c.Log.Environment,
		File:        c.Log.File,
		MaxSizeMB:   c.Log.MaxSizeMB,
		MaxBackups:  c.Log.MaxBackups,
	}
}

// Usage describes every environment variable Config reads.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
