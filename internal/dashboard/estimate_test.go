package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseEstimate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"2", 48 * time.Hour},
		{"3 days", 72 * time.Hour},
		{"1 day", 24 * time.Hour},
		{"4 hours", 4 * time.Hour},
		{"1 week", 7 * 24 * time.Hour},
		{"2h", 2 * time.Hour},
		{"2d", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1.5 days", 36 * time.Hour},
		{"90 minutes", 90 * time.Minute},
		{"  2 Days ", 48 * time.Hour},
		{"", DefaultEstimate},
		{"soon", DefaultEstimate},
		{"3 fortnights", DefaultEstimate},
		{"0", DefaultEstimate},
		{"2-3 days", DefaultEstimate},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEstimate(tt.in))
		})
	}
}
