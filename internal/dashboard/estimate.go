package dashboard

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultEstimate is used when an estimate cannot be read.
const DefaultEstimate = 24 * time.Hour

const day = 24 * time.Hour

var estimatePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]*)$`)

var estimateUnits = map[string]time.Duration{
	"":        day,
	"m":       time.Minute,
	"min":     time.Minute,
	"mins":    time.Minute,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"h":       time.Hour,
	"hr":      time.Hour,
	"hrs":     time.Hour,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"d":       day,
	"day":     day,
	"days":    day,
	"w":       7 * day,
	"wk":      7 * day,
	"week":    7 * day,
	"weeks":   7 * day,
}

// ParseEstimate reads an AI time estimate such as "2", "3 days", "4 hours",
// "1 week", "2h" or "1w". A bare number counts days. Anything unreadable,
// zero or negative yields DefaultEstimate.
func ParseEstimate(s string) time.Duration {
	s = strings.ToLower(strings.TrimSpace(s))
	m := estimatePattern.FindStringSubmatch(s)
	if m == nil {
		return DefaultEstimate
	}
	n, err := strconv.ParseFloat(m[1], 64)
	unit, ok := estimateUnits[m[2]]
	if err != nil || !ok || n <= 0 {
		return DefaultEstimate
	}
	return time.Duration(n * float64(unit))
}
