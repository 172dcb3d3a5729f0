package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/mellow/internal/commands"
	"github.com/sandeepkv93/mellow/internal/snapshot"
)

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> [+project]",
		Short: "Add a task to the day",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd, "add", args)
		},
	}
}

func subCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sub <task> <name>",
		Short: "Add a subtask to a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd, "sub", args)
		},
	}
}

func statusCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <task>[.sub]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd, verb, args)
		},
	}
}

func meetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meet <HH:MM> <name>",
		Short: "Schedule a meeting on the day",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd, "meet", args)
		},
	}
}

// runVerb goes through the same parser and handlers as the command palette.
func runVerb(cmd *cobra.Command, verb string, args []string) error {
	parsed, err := commands.Parse(verb + " " + strings.Join(args, " "))
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	day, err := a.day()
	if err != nil {
		return err
	}
	res, err := commands.Execute(parsed, a.planner.Handlers(cmd.Context(), day))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the tasks of the day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			day, err := a.day()
			if err != nil {
				return err
			}
			tasks, err := a.planner.Day(cmd.Context(), day)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintf(out, "no tasks for %s\n", day)
				return nil
			}
			fmt.Fprintf(out, "%s\n", day)
			index := 0
			snapshot.Normalize(tasks).Each(func(e snapshot.Entry) bool {
				label := ""
				if e.IsSubtask() {
					label = "  -"
				} else {
					index++
					label = fmt.Sprintf("%2d.", index)
				}
				line := fmt.Sprintf("%s %-11s %s", label, e.Task.Status, e.Task.Name)
				if at, ok := e.Task.MeetingTime(); ok {
					line += " @" + at.Local().Format("15:04")
				}
				fmt.Fprintf(out, "%s  (%s)\n", line, shortID(e.Task.ID))
				return true
			})
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
