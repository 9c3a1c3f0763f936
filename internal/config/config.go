// Package config provides configuration loading for taskdeck.
//
// Values come from a YAML file, TASKDECK_* environment variables and
// built-in defaults, in increasing order of precedence: defaults, file, env.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap/zapcore"
)

// Default endpoints of a locally running backend.
const (
	DefaultBaseURL = "http://localhost:8080/api"
	DefaultWSURL   = "ws://localhost:8080/ws"
)

// Config holds the complete taskdeck configuration.
type Config struct {
	API       APIConfig       `koanf:"api"`
	Session   SessionConfig   `koanf:"session"`
	Live      LiveConfig      `koanf:"live"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// APIConfig locates the backend.
type APIConfig struct {
	BaseURL string `koanf:"base_url"`
	WSURL   string `koanf:"ws_url"`
	// Timeout bounds each request. Zero means no timeout.
	Timeout Duration `koanf:"timeout"`
}

// SessionConfig controls where the session is persisted.
type SessionConfig struct {
	Path string `koanf:"path"` // default: ~/.config/taskdeck/session.json
}

// LiveConfig tunes the live update channel.
type LiveConfig struct {
	Debounce          time.Duration `koanf:"debounce"`
	MinReloadInterval time.Duration `koanf:"min_reload_interval"`
	Reconnect         bool          `koanf:"reconnect"`
	ReconnectDelay    time.Duration `koanf:"reconnect_delay"`
	MetricsAddr       string        `koanf:"metrics_addr"`
}

// LoggingConfig selects level and encoder for the CLI logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// OTEL also exports logs through the telemetry log provider.
	OTEL bool `koanf:"otel"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled        bool    `koanf:"enabled"`
	Endpoint       string  `koanf:"endpoint"`
	Protocol       string  `koanf:"protocol"`
	Insecure       bool    `koanf:"insecure"`
	ServiceName    string  `koanf:"service_name"`
	ServiceVersion string  `koanf:"service_version"`
	SamplingRate   float64 `koanf:"sampling_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validateURL("api.base_url", c.API.BaseURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("api.ws_url", c.API.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if c.Live.Debounce < 0 {
		return errors.New("live.debounce cannot be negative")
	}
	if c.Live.MinReloadInterval < 0 {
		return errors.New("live.min_reload_interval cannot be negative")
	}
	if c.Live.Reconnect && c.Live.ReconnectDelay <= 0 {
		return errors.New("live.reconnect_delay must be positive when reconnect is enabled")
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Logging.Level)); err != nil && c.Logging.Level != "trace" {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging.format: %q (must be json or console)", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return errors.New("telemetry.service_name required when telemetry is enabled")
		}
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("invalid telemetry.protocol: %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
			return fmt.Errorf("telemetry.sampling_rate must be between 0 and 1, got %f", c.Telemetry.SamplingRate)
		}
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("invalid %s: %q (scheme must be one of %v)", field, raw, schemes)
}
