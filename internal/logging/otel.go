package logging

import (
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newDualCore creates a core writing to the terminal and/or OTEL.
func newDualCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Target != "" {
		encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
		}
		out := os.Stderr
		if cfg.Output.Target == "stdout" {
			out = os.Stdout
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(out), cfg.Level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		rules, err := NewRedactingEncoder(nil, cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("failed to create redaction rules: %w", err)
		}
		bridge := otelzap.NewCore("taskdeck", otelzap.WithLoggerProvider(otelProvider))
		cores = append(cores, &redactingCore{Core: bridge, level: cfg.Level, rules: rules})
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}
	return newSampledCore(core, cfg.Sampling), nil
}

// redactingCore applies the level and redaction rules in front of a core
// that does not encode through a RedactingEncoder.
type redactingCore struct {
	zapcore.Core
	level zapcore.LevelEnabler
	rules *RedactingEncoder
}

func (c *redactingCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(c.rules.redactFields(fields)), level: c.level, rules: c.rules}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if msg, ok := c.rules.scrub(ent.Message); ok {
		ent.Message = msg
	}
	return c.Core.Write(ent, c.rules.redactFields(fields))
}
