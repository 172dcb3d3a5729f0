package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/mellow/internal/update"
)

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	day, err := a.day()
	if err != nil {
		return err
	}
	live, err := a.newLiveDay(nil)
	if err != nil {
		return err
	}
	live.engine.Start()
	defer live.engine.Stop()

	bridge := update.NewBridge(a.cfg.SchedulerBuffer)
	dispose, err := live.controller.Start(day, bridge.Handlers())
	if err != nil {
		return err
	}
	// The bridge closes first so a delivery blocked on a full channel can
	// return before the subscription is torn down.
	defer dispose()
	defer bridge.Close()

	m := update.NewModel(update.Deps{
		Context:    cmd.Context(),
		Day:        day,
		Actions:    a.planner,
		Controller: live.controller,
		Permission: live.permission,
		Engine:     live.engine,
		Events:     bridge.C(),
		Done:       bridge.Done(),
		InApp:      live.inApp,
		Now:        time.Now,
		Location:   time.Local,
		Log:        a.log,
	})
	a.log.Info("tui started", "day", day)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
