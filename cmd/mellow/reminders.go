package main

import (
	"github.com/sandeepkv93/mellow/internal/meetings"
	"github.com/sandeepkv93/mellow/internal/notify"
	"github.com/sandeepkv93/mellow/internal/reconcile"
	"github.com/sandeepkv93/mellow/internal/scheduler"
	"github.com/sandeepkv93/mellow/internal/storage"
)

// liveDay is the feed, reminder scheduler and controller for one day.
type liveDay struct {
	permission *notify.FilePermission
	inApp      *notify.Recorder
	engine     *scheduler.Engine
	meetings   *meetings.Scheduler
	controller *reconcile.Controller
}

// newLiveDay wires the reconcile core onto the store. The in-app recorder
// always receives reminders; desktop notifications are added when enabled in
// config, and then also decide whether a grant can be given.
func (a *app) newLiveDay(onFired func(meetings.Pending)) (*liveDay, error) {
	desktop := notify.NewDesktop()
	available := func() bool { return true }
	inApp := &notify.Recorder{}
	display := notify.Multi{inApp}
	if a.cfg.DesktopNotifications {
		available = desktop.Available
		display = append(display, desktop)
	}

	perm, err := notify.NewFilePermission(a.cfg.StateFile, true, available)
	if err != nil {
		return nil, err
	}

	engine := scheduler.NewEngine(a.cfg.SchedulerBuffer)
	opts := []meetings.Option{
		meetings.WithLead(a.cfg.ReminderLead),
		meetings.WithLogger(a.log),
	}
	if onFired != nil {
		opts = append(opts, meetings.WithFiredHook(onFired))
	}
	sched := meetings.NewScheduler(engine, perm, display, opts...)

	feed := storage.NewFeed(a.repo,
		storage.WithPollInterval(a.cfg.PollInterval),
		storage.WithFeedLogger(a.log),
	)
	return &liveDay{
		permission: perm,
		inApp:      inApp,
		engine:     engine,
		meetings:   sched,
		controller: reconcile.NewController(feed, sched, reconcile.WithLogger(a.log)),
	}, nil
}
