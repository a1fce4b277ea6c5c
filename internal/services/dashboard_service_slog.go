package services

import (
	"context"
	"log/slog"

	"workpulse/internal/infrastructure"
)

// logDashboardError logs a dashboard service error with the request's
// trace ID attached.
func logDashboardError(ctx context.Context, action, message string, attrs ...slog.Attr) {
	logger := infrastructure.LoggerWithContext(ctx)

	allAttrs := []slog.Attr{
		slog.String("component", "dashboard_service"),
		slog.String("action", action),
	}
	allAttrs = append(allAttrs, attrs...)

	logger.LogAttrs(ctx, slog.LevelError, message, allAttrs...)
}
