package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/taskdeck/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Secret creates a field that records only the length of a secret.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString creates a field with redacted value and length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder wraps a zapcore.Encoder to redact sensitive fields by
// key and string values by pattern.
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]bool
	patterns []*regexp.Regexp
}

// NewRedactingEncoder wraps an encoder with redaction rules.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}

	keys := make(map[string]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		keys[strings.ToLower(f)] = true
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &RedactingEncoder{Encoder: base, keys: keys, patterns: patterns}, nil
}

func (e *RedactingEncoder) sensitive(key string) bool {
	return e.keys[strings.ToLower(key)]
}

func (e *RedactingEncoder) scrub(val string) (string, bool) {
	for _, re := range e.patterns {
		if re.MatchString(val) {
			return re.ReplaceAllString(val, "[REDACTED]"), true
		}
	}
	return val, false
}

// EncodeEntry redacts the fields passed at the call site. The wrapped
// encoder writes them through its own Add methods, not ours.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if msg, ok := e.scrub(ent.Message); ok {
		ent.Message = msg
	}
	return e.Encoder.EncodeEntry(ent, e.redactFields(fields))
}

func (e *RedactingEncoder) redactFields(fields []zapcore.Field) []zapcore.Field {
	if e.keys == nil && len(e.patterns) == 0 {
		return fields
	}
	redacted := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		redacted[i] = e.redactField(f)
	}
	return redacted
}

func (e *RedactingEncoder) redactField(f zapcore.Field) zapcore.Field {
	if e.sensitive(f.Key) {
		switch f.Type {
		case zapcore.SkipType, zapcore.NamespaceType:
			return f
		case zapcore.StringType:
			if strings.HasPrefix(f.String, "[REDACTED") {
				return f
			}
		}
		return zap.String(f.Key, "[REDACTED]")
	}
	switch f.Type {
	case zapcore.StringType:
		if strings.HasPrefix(f.String, "[REDACTED") {
			return f
		}
		if val, ok := e.scrub(f.String); ok {
			return zap.String(f.Key, val)
		}
	case zapcore.ErrorType:
		if val, ok := e.scrub(errorMessage(f.Interface)); ok {
			return zap.String(f.Key, val)
		}
	}
	return f
}

// errorMessage returns the text of v when it is an error. zap tolerates
// panicking Error methods, so this does too.
func errorMessage(v interface{}) (msg string) {
	err, ok := v.(error)
	if !ok || err == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			msg = ""
		}
	}()
	return err.Error()
}

// AddString redacts sensitive keys and values that match a pattern. Values
// already marked redacted pass through.
func (e *RedactingEncoder) AddString(key, val string) {
	if strings.HasPrefix(val, "[REDACTED") {
		e.Encoder.AddString(key, val)
		return
	}
	if e.sensitive(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return
	}
	val, _ = e.scrub(val)
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddByteString(key, []byte("[REDACTED]"))
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.sensitive(key) {
		e.Encoder.AddBinary(key, []byte("[REDACTED]"))
		return
	}
	e.Encoder.AddBinary(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.sensitive(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone creates a copy of the encoder.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:  e.Encoder.Clone(),
		keys:     e.keys,
		patterns: e.patterns,
	}
}
