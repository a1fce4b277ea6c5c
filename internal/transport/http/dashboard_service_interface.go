package http

import (
	"context"
	"time"

	"workpulse/pkg/contracts/domain"
)

// DashboardServiceInterface defines the interface for dashboard operations
type DashboardServiceInterface interface {
	Snapshot(ctx context.Context) domain.Snapshot
	Reload(ctx context.Context) domain.Snapshot
	ClientsOn(ctx context.Context, day time.Time) (int64, error)
}

// SnapshotBroadcaster pushes refreshed snapshots to connected pages. The
// WebSocket hub satisfies it; handlers hold the interface so tests can
// substitute a recorder.
type SnapshotBroadcaster interface {
	BroadcastSnapshotWithTrace(snap *domain.Snapshot, source, traceID string)
}
