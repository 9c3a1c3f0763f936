package v1

import (
	"fmt"
	"strings"
	"time"
)

// InstantLayout is the wire form of every due date: a UTC instant with
// millisecond precision.
const InstantLayout = "2006-01-02T15:04:05.000Z"

// Layouts without a zone are read as UTC wall time.
var zonelessLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// ParseDueDate parses a calendar date, a zoneless local datetime or an
// RFC 3339 instant.
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ValidationError{Field: "due_date", Message: "due date is required"}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ValidationError{
		Field:   "due_date",
		Message: fmt.Sprintf("invalid due date %q: expected YYYY-MM-DD or an ISO-8601 datetime", s),
	}
}

// NormalizeDueDate converts any accepted due date form to InstantLayout.
func NormalizeDueDate(s string) (string, error) {
	t, err := ParseDueDate(s)
	if err != nil {
		return "", err
	}
	return FormatInstant(t), nil
}

// FormatInstant renders t in InstantLayout.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}
