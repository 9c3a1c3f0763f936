package v1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDueDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"calendar date", "2024-03-15", "2024-03-15T00:00:00.000Z"},
		{"trims whitespace", "  2024-03-15 ", "2024-03-15T00:00:00.000Z"},
		{"local datetime minutes", "2024-03-15T09:30", "2024-03-15T09:30:00.000Z"},
		{"local datetime seconds", "2024-03-15T09:30:15", "2024-03-15T09:30:15.000Z"},
		{"utc instant", "2024-03-15T09:30:15Z", "2024-03-15T09:30:15.000Z"},
		{"millis preserved", "2024-03-15T09:30:15.123Z", "2024-03-15T09:30:15.123Z"},
		{"offset converted to utc", "2024-03-15T09:30:00+02:00", "2024-03-15T07:30:00.000Z"},
		{"already normalized", "2024-12-31T23:59:59.999Z", "2024-12-31T23:59:59.999Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDueDate(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// Normalizing twice is stable.
			again, err := NormalizeDueDate(got)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestNormalizeDueDate_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "tomorrow", "15/03/2024", "2024-13-01"} {
		t.Run(input, func(t *testing.T) {
			_, err := NormalizeDueDate(input)
			require.Error(t, err)
			assert.True(t, IsValidation(err))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "due_date", ve.Field)
		})
	}
}

func TestFormatInstant(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	ts := time.Date(2024, 1, 2, 20, 0, 0, 0, loc)
	assert.Equal(t, "2024-01-03T01:00:00.000Z", FormatInstant(ts))
}

func TestTaskDue(t *testing.T) {
	task := Task{DueDate: "2024-03-15T00:00:00.000Z"}
	due, ok := task.Due()
	require.True(t, ok)
	assert.Equal(t, 2024, due.Year())

	_, ok = Task{}.Due()
	assert.False(t, ok)

	_, ok = Task{DueDate: "soon"}.Due()
	assert.False(t, ok)
}
