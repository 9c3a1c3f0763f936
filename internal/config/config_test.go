package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "https base", mutate: func(c *Config) { c.API.BaseURL = "https://x.io/api" }},
		{name: "bad base scheme", mutate: func(c *Config) { c.API.BaseURL = "ftp://x.io" }, wantErr: "api.base_url"},
		{name: "base without host", mutate: func(c *Config) { c.API.BaseURL = "http://" }, wantErr: "api.base_url"},
		{name: "negative debounce", mutate: func(c *Config) { c.Live.Debounce = -time.Second }, wantErr: "live.debounce"},
		{name: "reconnect without delay", mutate: func(c *Config) {
			c.Live.Reconnect = true
			c.Live.ReconnectDelay = 0
		}, wantErr: "reconnect_delay"},
		{name: "trace level", mutate: func(c *Config) { c.Logging.Level = "trace" }},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{name: "telemetry bad protocol", mutate: func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Protocol = "udp"
		}, wantErr: "telemetry.protocol"},
		{name: "telemetry bad rate", mutate: func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.SamplingRate = 2
		}, wantErr: "sampling_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_Redacts(t *testing.T) {
	s := Secret("eyJhbGciOi")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "eyJhbGciOi", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Token Secret `json:"token"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"[REDACTED]"}`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))
}
