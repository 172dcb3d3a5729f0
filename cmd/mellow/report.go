package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/mellow/internal/commands"
	"github.com/sandeepkv93/mellow/internal/config"
	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/views"
)

func statsCmd() *cobra.Command {
	var (
		from   string
		to     string
		format string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize tasks over a range of days",
		Long: `Summarize tasks between --from and --to (inclusive).

Both default to --day, or today. Formats:
  md    rendered markdown (default)
  raw   markdown source
  yaml  machine readable`,
		Args: cobra.NoArgs,
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
			start, end := day, day
			if from != "" {
				if start, err = model.ParseDay(from); err != nil {
					return err
				}
			}
			if to != "" {
				if end, err = model.ParseDay(to); err != nil {
					return err
				}
			}
			if end < start {
				return fmt.Errorf("--to %s is before --from %s", end, start)
			}

			summary, err := a.planner.Stats(cmd.Context(), start, end)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "md", "":
				fmt.Fprintln(out, views.RenderMarkdown(summary.Markdown()))
			case "raw":
				fmt.Fprint(out, summary.Markdown())
			case "yaml":
				data, err := summary.YAML()
				if err != nil {
					return err
				}
				_, _ = out.Write(data)
			default:
				return fmt.Errorf("unknown format %q (want md, raw or yaml)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format: md, raw, yaml")
	return cmd
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> [#color]",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd, string(commands.TypeProject), args)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			projects, err := a.planner.Projects(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(out, "no projects")
				return nil
			}
			for _, p := range projects {
				if p.Color != "" {
					fmt.Fprintf(out, "%s  %s\n", p.Name, p.Color)
					continue
				}
				fmt.Fprintln(out, p.Name)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a project, keeping its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.planner.DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "project deleted: %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func envCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Describe the environment variables mellow reads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.Usage())
			return nil
		},
	}
}
