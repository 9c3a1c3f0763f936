package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskdeck/internal/dashboard"
	"github.com/fyrsmithlabs/taskdeck/internal/session"
)

func newSuggestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <description...>",
		Short: "Ask the AI assistant to break a task down",
		Long: `Ask the AI assistant for subtasks, a priority and a time estimate.
Nothing is created; use generate for that.

Examples:
  taskdeck suggest "launch the new pricing page"`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.protected(func(cmd *cobra.Command, args []string, _ session.Session) error {
			s, err := a.api.RequestAISuggestion(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), s)
			}
			return printSuggestion(cmd.OutOrStdout(), s)
		}),
	}
}

func newGenerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <description...>",
		Short: "Create tasks from an AI breakdown",
		Long: `Ask the AI assistant to break a description down and create one task per
subtask. Each task is described as "Part of: <description>", starts as
todo, takes the suggested priority and is due after the suggested
estimate (one day when it can't be read).

Examples:
  taskdeck generate "launch the new pricing page"`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.protected(func(cmd *cobra.Command, args []string, _ session.Session) error {
			ctrl := dashboard.New(a.api, dashboard.WithLogger(a.logger))
			defer ctrl.Close()

			created, err := ctrl.Generate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				if banner := ctrl.Banner(); banner != "" {
					return fmt.Errorf("%s: %w", banner, err)
				}
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d tasks.\n", len(created))
			return printTasks(cmd.OutOrStdout(), created, time.Now())
		}),
	}
}
