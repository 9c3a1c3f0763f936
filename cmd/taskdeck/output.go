package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fyrsmithlabs/taskdeck/internal/tui"
	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTasks(w io.Writer, tasks []v1.Task, now time.Time) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "No tasks found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			t.ID,
			tui.Truncate(t.Title, 50),
			t.Status,
			tui.PriorityLabel(t.Priority),
			tui.FormatDue(t, now),
		)
	}
	return tw.Flush()
}

func printTask(w io.Writer, t v1.Task, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "Status:\t%s\n", tui.StatusLabel(t.Status))
	fmt.Fprintf(tw, "Priority:\t%s\n", tui.PriorityLabel(t.Priority))
	if t.DueDate != "" {
		fmt.Fprintf(tw, "Due:\t%s (%s)\n", t.DueDate, tui.FormatDue(t, now))
	}
	if t.AssignedTo != nil {
		fmt.Fprintf(tw, "Assigned to:\t%d\n", *t.AssignedTo)
	}
	return tw.Flush()
}

func printSuggestion(w io.Writer, s v1.AISuggestion) error {
	if s.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", s.Title)
	}
	fmt.Fprintf(w, "Priority: %s\n", s.Priority)
	fmt.Fprintf(w, "Estimate: %s\n", s.TimeEstimate)
	fmt.Fprintln(w, "Subtasks:")
	for i, sub := range s.Subtasks {
		fmt.Fprintf(w, "  %d. %s\n", i+1, strings.TrimSpace(sub))
	}
	return nil
}
