package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id, ok := UserIDFromContext(ctx); ok {
		fields = append(fields, zap.Int64("user.id", id))
	}
	if op := OperationFromContext(ctx); op != "" {
		fields = append(fields, zap.String("op", op))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}
	return fields
}

type (
	userCtxKey    struct{}
	opCtxKey      struct{}
	requestCtxKey struct{}
	loggerCtxKey  struct{}
)

// WithUserID records the authenticated user.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userCtxKey{}, id)
}

// UserIDFromContext returns the user recorded by WithUserID.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userCtxKey{}).(int64)
	return id, ok
}

// WithOperation names the API operation in progress.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, opCtxKey{}, op)
}

// OperationFromContext returns the operation recorded by WithOperation.
func OperationFromContext(ctx context.Context) string {
	op, _ := ctx.Value(opCtxKey{}).(string)
	return op
}

// WithRequestID adds a request ID to context. Empty IDs are ignored.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	r, _ := ctx.Value(requestCtxKey{}).(string)
	return r
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
