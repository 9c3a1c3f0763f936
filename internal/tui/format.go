package tui

import (
	"fmt"
	"strings"
	"time"

	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// StatusLabel returns a display name, e.g. "In Progress".
func StatusLabel(s v1.Status) string {
	switch s {
	case v1.StatusTodo:
		return "Todo"
	case v1.StatusInProgress:
		return "In Progress"
	case v1.StatusCompleted:
		return "Completed"
	case v1.StatusBlocked:
		return "Blocked"
	case "":
		return "All"
	}
	return string(s)
}

// StatusSymbol returns a one-character status marker.
func StatusSymbol(s v1.Status) string {
	switch s {
	case v1.StatusTodo:
		return "○"
	case v1.StatusInProgress:
		return "◐"
	case v1.StatusCompleted:
		return "✓"
	case v1.StatusBlocked:
		return "✗"
	}
	return "?"
}

// PriorityLabel returns a display name; unknown and empty values render "-".
func PriorityLabel(p v1.Priority) string {
	if !p.Valid() {
		return "-"
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// FormatDue describes a due date relative to now: "due in 3d",
// "due in 5h", "overdue 2d", "due now" or "no due date".
func FormatDue(t v1.Task, now time.Time) string {
	due, ok := t.Due()
	if !ok {
		return "no due date"
	}
	d := due.Sub(now)
	if d < 0 {
		if t.Status == v1.StatusCompleted {
			return "done " + due.UTC().Format("2006-01-02")
		}
		return "overdue " + FormatSpan(-d)
	}
	if d < time.Minute {
		return "due now"
	}
	return "due in " + FormatSpan(d)
}

// FormatSpan renders a duration coarsely as "Xd", "Xh" or "Xm".
func FormatSpan(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int64(d/(24*time.Hour)))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int64(d/time.Hour))
	default:
		return fmt.Sprintf("%dm", int64(d/time.Minute))
	}
}

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

// Truncate shortens s to at most n runes, ending in "…" when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
