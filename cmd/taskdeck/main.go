// Package main implements the taskdeck CLI: sign in, manage tasks, ask the
// AI for a breakdown and follow live updates from the backend.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes the CLI with the given arguments and streams.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "taskdeck",
		Short: "CLI for the taskdeck task backend",
		Long: `taskdeck is a command-line client for a task-management backend.

It signs you in, lists and edits your tasks, turns a description into
subtasks with the AI assistant, and follows live updates pushed by the
server.

Examples:
  # Sign in and list tasks
  taskdeck login --email ada@example.com
  taskdeck tasks list

  # Open the interactive dashboard
  taskdeck ui

  # Use a different backend
  taskdeck --server https://tasks.example.com/api --ws wss://tasks.example.com/ws tasks list`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.config/taskdeck/config.yaml)")
	pf.StringVar(&a.flags.server, "server", "", "backend API base URL (overrides api.base_url)")
	pf.StringVar(&a.flags.ws, "ws", "", "push channel base URL (overrides api.ws_url)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.BoolVar(&a.flags.json, "json", false, "Output results as JSON")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newTasksCmd(a),
		newSuggestCmd(a),
		newGenerateCmd(a),
		newWatchCmd(a),
		newUICmd(a),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\nRun '%s --help' for usage", err, cmd.CommandPath())
	})
	return root
}
