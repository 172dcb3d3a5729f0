package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/mellow/internal/meetings"
	"github.com/sandeepkv93/mellow/internal/metrics"
	"github.com/sandeepkv93/mellow/internal/reconcile"
	"github.com/sandeepkv93/mellow/internal/scheduler"
)

func watchCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run reminders and completion tracking without the interactive view",
		Long: `Watch the day headless: meeting reminders go to desktop notifications and
completions to the log. Notification permission must have been granted once,
either from the interactive view ([p]) or with --grant.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			grant, _ := cmd.Flags().GetBool("grant")
			return runWatch(cmd.Context(), metricsAddr, grant)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default $MELLOW_METRICS_ADDR)")
	cmd.Flags().Bool("grant", false, "grant notification permission before watching")
	return cmd
}

func runWatch(parent context.Context, metricsAddr string, grant bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if metricsAddr == "" {
		metricsAddr = a.cfg.MetricsAddr
	}

	day, err := a.day()
	if err != nil {
		return err
	}
	live, err := a.newLiveDay(func(p meetings.Pending) {
		a.log.Info("reminder fired", "task", p.TaskName, "meeting_time", p.MeetingTime)
	})
	if err != nil {
		return err
	}
	if grant {
		ok, err := live.meetings.RequestPermission(ctx)
		if err != nil {
			return fmt.Errorf("request notification permission: %w", err)
		}
		if !ok {
			return errors.New("notification permission not granted: install notify-send or run on macOS")
		}
	}
	if !a.cfg.DesktopNotifications {
		a.log.Warn("desktop notifications disabled, reminders are only logged")
	}
	if !live.meetings.IsPermissionGranted() {
		a.log.Warn("notification permission missing, meeting reminders are off", "day", day)
	}

	live.engine.Start()
	defer live.engine.Stop()

	dispose, err := live.controller.Start(day, reconcile.Handlers{
		OnCompletions: func(keys []string) {
			a.log.Info("tasks completed", "day", day, "keys", keys)
		},
		OnMeetingsChanged: func(pending []meetings.Pending) {
			a.log.Debug("reminders reconciled", "day", day, "pending", len(pending))
		},
		OnError: func(err error) {
			a.log.Error("feed failed", "day", day, "error", err)
		},
	})
	if err != nil {
		return err
	}
	defer dispose()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Pump(live.engine, gctx.Done())
		return nil
	})
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			a.log.Info("metrics listening", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	a.log.Info("watching", "day", day)
	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("watch stopped", "day", day)
	return nil
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
