package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// AISuggestion is a generated breakdown of a task description.
type AISuggestion struct {
	Title        string   `json:"title"`
	Subtasks     []string `json:"subtasks"`
	Priority     string   `json:"priority"`
	TimeEstimate string   `json:"timeEstimate"`
}

// UnmarshalJSON tolerates missing fields, the snake_case time_estimate key
// and numeric estimates.
func (s *AISuggestion) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title         string          `json:"title"`
		Subtasks      []string        `json:"subtasks"`
		Priority      string          `json:"priority"`
		TimeEstimate  json.RawMessage `json:"timeEstimate"`
		TimeEstimate2 json.RawMessage `json:"time_estimate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	estimate := raw.TimeEstimate
	if len(estimate) == 0 {
		estimate = raw.TimeEstimate2
	}
	est, err := decodeEstimate(estimate)
	if err != nil {
		return err
	}

	*s = AISuggestion{
		Title:        raw.Title,
		Subtasks:     raw.Subtasks,
		Priority:     raw.Priority,
		TimeEstimate: est,
	}
	return nil
}

func decodeEstimate(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("time estimate: %w", err)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

// SuggestResponse is the envelope of POST /ai/suggest. Suggestions normally
// holds a JSON string that itself encodes an AISuggestion.
type SuggestResponse struct {
	Suggestions json.RawMessage `json:"suggestions"`
}

// Decode unwraps the double-encoded suggestion. The second result is false
// when the payload arrived as a plain object instead of a JSON string.
func (r SuggestResponse) Decode() (AISuggestion, bool, error) {
	var out AISuggestion
	raw := bytes.TrimSpace(r.Suggestions)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, false, fmt.Errorf("suggestions missing from response")
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return out, false, fmt.Errorf("decode suggestions string: %w", err)
		}
		if err := json.Unmarshal([]byte(inner), &out); err != nil {
			return out, true, fmt.Errorf("decode suggestion: %w", err)
		}
		return out, true, nil
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode suggestion: %w", err)
	}
	return out, false, nil
}
