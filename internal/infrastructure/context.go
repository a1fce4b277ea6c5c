package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// ctxKey keeps context values private to this package.
type ctxKey int

const traceIDKey ctxKey = iota

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace ID carried by ctx, or "" when absent.
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// EnsureTraceID attaches a fresh trace ID when ctx has none. Work that
// starts outside a request, such as a watcher-triggered reload, gets its
// ID here.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, uuid.NewString())
}

// LoggerWithContext returns the global logger bound to the trace ID in
// ctx, if any.
func LoggerWithContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()
	if traceID := GetTraceID(ctx); traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}
	return logger
}
