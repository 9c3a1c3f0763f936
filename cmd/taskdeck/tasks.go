package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/taskdeck/internal/session"
	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Manage tasks",
		Long: `List, inspect, create, edit and delete tasks visible to the signed-in user.

Due dates accept a date ("2024-05-01"), a local date-time
("2024-05-01T09:30") or a full RFC 3339 instant. They are sent as a UTC
instant; dates without a zone are read as UTC.

Examples:
  # List open work
  taskdeck tasks list --status in_progress

  # Create a task due tomorrow
  taskdeck tasks create --title "Write report" --due 2024-05-02 --priority high

  # Move a task along
  taskdeck tasks status 12 completed`,
	}
	cmd.AddCommand(
		newTasksListCmd(a),
		newTasksGetCmd(a),
		newTasksCreateCmd(a),
		newTasksUpdateCmd(a),
		newTasksStatusCmd(a),
		newTasksDeleteCmd(a),
	)
	return cmd
}

func newTasksListCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: a.protected(func(cmd *cobra.Command, args []string, _ session.Session) error {
			var filter v1.Status
			if status != "" {
				var err error
				if filter, err = v1.ParseStatus(status); err != nil {
					return err
				}
			}

			tasks, err := a.api.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			if filter != "" {
				kept := tasks[:0]
				for _, t := range tasks {
					if t.Status == filter {
						kept = append(kept, t)
					}
				}
				tasks = kept
			}

			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			return printTasks(cmd.OutOrStdout(), tasks, time.Now())
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "Only show tasks with this status")
	return cmd
}

func newTasksGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: a.protected(func(cmd *cobra.Command, args []string, _ session.Session) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, err := a.api.GetTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printOne(cmd, t)
		}),
	}
}

func newTasksCreateCmd(a *app) *cobra.Command {
	var (
		in       v1.TaskInput
		status   string
		priority string
		assignee int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Long: `Create a task. --title and --due are required; status defaults to todo
and priority to medium on the server.

Examples:
  taskdeck tasks create --title "Write report" --due 2024-05-01
  taskdeck tasks create --title "Fix login" --due 2024-05-01T17:00:00Z --priority high --assign 7`,
		Args: cobra.NoArgs,
		RunE: a.protected(func(cmd *cobra.Command, args []string, _ session.Session) error {
			var err error
			if status != "" {
				if in.Status, err = v1.ParseStatus(status); err != nil {
					return err
				}
			}
			if priority != "" {
				if in.Priority, err = v1.ParsePriority(priority); err != nil {
					return err
				}
			}
			if assignee != 0 {
				in.AssignedTo = &assignee
			}
			t, err := a.api.CreateTask(cmd.Context(), in)
			if err != nil {
				return err
			}
			return a.printOne(cmd, t)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "Task title (required)")
	f.StringVar(&in.Description, "description", "", "Task description")
	f.StringVar(&in.DueDate, "due", "", "Due date (required)")
	f.StringVar(&status, "status", "", "todo, in_progress, completed or blocked")
	f.StringVar(&priority, "priority", "", "low, medium or high")
	f.Int64Var(&assignee, "assign", 0, "Assign to this user id")
	return cmd
}

func newTasksUpdateCmd(a *app) *cobra.Command {
	var (
		title, description, status, priority, due string
		assignee                                   int64
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task",
		Long: `Change fields of a task. Only the flags you pass are sent.

Examples:
  taskdeck tasks update 12 --title "Write final report" --due 2024-05-03`,
		Args: cobra.ExactArgs(1),
		RunE: a.protected(func(cmd *cobra.Command, args []string, _ session.Session) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var patch v1.TaskPatch
			f := cmd.Flags()
			if f.Changed("title") {
				patch.Title = &title
			}
			if f.Changed("description") {
				patch.Description = &description
			}
			if f.Changed("status") {
				st, err := v1.ParseStatus(status)
				if err != nil {
					return err
				}
				patch.Status = &st
			}
			if f.Changed("priority") {
				p, err := v1.ParsePriority(priority)
				if err != nil {
					return err
				}
				patch.Priority = &p
			}
			if f.Changed("due") {
				patch.DueDate = &due
			}
			if f.Changed("assign") {
				patch.AssignedTo = &assignee
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update: pass at least one of --title, --description, --status, --priority, --due or --assign")
			}

			t, err := a.api.UpdateTask(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			return a.printOne(cmd, t)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "New title")
	f.StringVar(&description, "description", "", "New description")
	f.StringVar(&status, "status", "", "New status")
	f.StringVar(&priority, "priority", "", "New priority")
	f.StringVar(&due, "due", "", "New due date")
	f.Int64Var(&assignee, "assign", 0, "Assign to this user id")
	return cmd
}

func newTasksStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set the status of a task",
		Args:  cobra.ExactArgs(2),
		RunE: a.protected(func(cmd *cobra.Command, args []string, _ session.Session) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := v1.ParseStatus(args[1])
			if err != nil {
				return err
			}
			t, err := a.api.UpdateTask(cmd.Context(), id, v1.StatusPatch(st))
			if err != nil {
				return err
			}
			return a.printOne(cmd, t)
		}),
	}
}

func newTasksDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: a.protected(func(cmd *cobra.Command, args []string, _ session.Session) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.api.DeleteTask(cmd.Context(), id); err != nil {
				return err
			}
			if a.flags.json {
				return printJSON(cmd.OutOrStdout(), map[string]int64{"deleted": id})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d.\n", id)
			return nil
		}),
	}
}

func (a *app) printOne(cmd *cobra.Command, t v1.Task) error {
	if a.flags.json {
		return printJSON(cmd.OutOrStdout(), t)
	}
	return printTask(cmd.OutOrStdout(), t, time.Now())
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
