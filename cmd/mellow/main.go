package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	configPath string
	dayFlag    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mellow failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "mellow",
		Short:   "Plan the day, track tasks and get reminded before meetings",
		Version: Version,
		Long: `mellow keeps a per-day task list in SQLite and shows it live in the terminal.

Completions are highlighted as they happen and every upcoming meeting gets a
reminder a few minutes before it starts. Run without a subcommand to open the
interactive view.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $"+configEnvName()+")")
	rootCmd.PersistentFlags().StringVarP(&dayFlag, "day", "d", "", "day to work on, YYYY-MM-DD (default today)")

	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(subCmd())
	rootCmd.AddCommand(statusCmd("start", "Start a task"))
	rootCmd.AddCommand(statusCmd("done", "Complete a task"))
	rootCmd.AddCommand(statusCmd("cancel", "Cancel a task"))
	rootCmd.AddCommand(meetCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(envCmd())
	return rootCmd
}
