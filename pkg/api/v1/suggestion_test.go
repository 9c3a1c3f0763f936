package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestResponse_Decode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    AISuggestion
		encoded bool
		wantErr bool
	}{
		{
			name:    "double encoded",
			body:    `{"suggestions":"{\"title\":\"T\",\"subtasks\":[\"a\",\"b\"],\"priority\":\"high\",\"timeEstimate\":\"2h\"}"}`,
			want:    AISuggestion{Title: "T", Subtasks: []string{"a", "b"}, Priority: "high", TimeEstimate: "2h"},
			encoded: true,
		},
		{
			name: "plain object with numeric snake_case estimate",
			body: `{"suggestions":{"title":"T","subtasks":["a"],"priority":"Medium","time_estimate":1.5}}`,
			want: AISuggestion{Title: "T", Subtasks: []string{"a"}, Priority: "Medium", TimeEstimate: "1.5"},
		},
		{
			name:    "missing fields tolerated",
			body:    `{"suggestions":"{\"title\":\"only\"}"}`,
			want:    AISuggestion{Title: "only"},
			encoded: true,
		},
		{
			name:    "inner string not json",
			body:    `{"suggestions":"not json"}`,
			encoded: true,
			wantErr: true,
		},
		{
			name:    "missing suggestions",
			body:    `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp SuggestResponse
			require.NoError(t, json.Unmarshal([]byte(tt.body), &resp))

			got, encoded, err := resp.Decode()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.encoded, encoded)
		})
	}
}
