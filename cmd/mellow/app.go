package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sandeepkv93/mellow/internal/config"
	"github.com/sandeepkv93/mellow/internal/logger"
	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/planner"
	"github.com/sandeepkv93/mellow/internal/storage"
)

// app holds what every subcommand needs: settings, a logger and the store.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	repo    *storage.SQLiteRepository
	planner *planner.Planner

	logCloser io.Closer
}

func configEnvName() string {
	return config.PathEnv
}

func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, closer, err := logger.New(cfg.Logger())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	repo, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	log.Debug("store opened", "path", cfg.DBPath)
	return &app{
		cfg:       cfg,
		log:       log,
		repo:      repo,
		planner:   planner.New(repo, planner.WithLogger(log)),
		logCloser: closer,
	}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.log.Warn("close store", "error", err)
	}
	_ = a.logCloser.Close()
}

// day resolves --day, defaulting to today in local time.
func (a *app) day() (model.Day, error) {
	if strings.TrimSpace(dayFlag) == "" {
		return a.planner.Today(), nil
	}
	return model.ParseDay(dayFlag)
}
