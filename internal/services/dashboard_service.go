package services

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"workpulse/internal/metrics"
	"workpulse/pkg/contracts/domain"
)

// TableSource is the cache surface the dashboard service reads through.
type TableSource interface {
	Get(ctx context.Context) (*domain.Table, error)
	Refresh(ctx context.Context) (*domain.Table, error)
}

// DashboardService assembles dashboard snapshots from the cached metrics
// table. It owns the dashboard's notion of "today": the clock is injected
// so tests can pin it, and the calculators receive concrete days instead
// of consulting the clock themselves.
type DashboardService struct {
	source TableSource
	logger *slog.Logger
	now    func() time.Time

	// autoRefresh reflects whether the change watcher is delivering
	// updates; the page shows its refresh notice only while true.
	autoRefresh atomic.Bool
}

// NewDashboardService creates the dashboard service. A nil clock defaults
// to time.Now.
func NewDashboardService(source TableSource, now func() time.Time, logger *slog.Logger) *DashboardService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &DashboardService{
		source: source,
		logger: logger.With(slog.String("service", "dashboard")),
		now:    now,
	}
	s.autoRefresh.Store(true)
	return s
}

// SetAutoRefresh records whether live refresh is available. The
// application flips it off when the watcher could not start.
func (s *DashboardService) SetAutoRefresh(enabled bool) {
	s.autoRefresh.Store(enabled)
}

// Snapshot assembles the dashboard view-model from the current table.
// Load failures never surface as errors here: the snapshot carries the
// failure inline with zeroed metrics so the page always renders.
func (s *DashboardService) Snapshot(ctx context.Context) domain.Snapshot {
	table, loadErr := s.source.Get(ctx)
	return s.assemble(ctx, table, loadErr)
}

// Reload forces a fresh read of the workbook and returns the resulting
// snapshot. The watcher path and POST /api/dashboard/reload both land
// here; reloading an unchanged file yields an identical snapshot apart
// from its timestamp.
func (s *DashboardService) Reload(ctx context.Context) domain.Snapshot {
	table, loadErr := s.source.Refresh(ctx)
	s.logger.InfoContext(ctx, "dashboard reloaded",
		slog.Int("rows", len(table.Rows)),
		slog.Bool("load_failed", loadErr != nil))
	return s.assemble(ctx, table, loadErr)
}

// ClientsOn returns the platform-user sum for one calendar day. Unlike
// Snapshot it propagates load failures, since there is no page to carry
// them inline.
func (s *DashboardService) ClientsOn(ctx context.Context, day time.Time) (int64, error) {
	table, loadErr := s.source.Get(ctx)
	if loadErr != nil {
		return 0, loadErr
	}
	return metrics.ClientsOn(table, day), nil
}

func (s *DashboardService) assemble(ctx context.Context, table *domain.Table, loadErr error) domain.Snapshot {
	if table == nil {
		table = domain.EmptyTable()
	}

	now := s.now()
	yesterday := now.AddDate(0, 0, -1)
	totalWords := metrics.TotalWords(table)

	snap := domain.Snapshot{
		GeneratedAt:      now,
		AvgWorkMinutes:   metrics.AverageWorkMinutes(table),
		TotalWords:       totalWords,
		TotalWordsLabel:  metrics.FormatCount(totalWords),
		PaidMinutes:      metrics.CompareDays(table, now, yesterday),
		ClientsToday:     metrics.ClientsOn(table, now),
		ClientsYesterday: metrics.ClientsOn(table, yesterday),
		RowCount:         len(table.Rows),
		Headers:          table.Headers,
		Rows:             table.RawRows(),
		AutoRefresh:      s.autoRefresh.Load(),
	}

	if loadErr != nil {
		snap.LoadError = loadErr.Error()
		logDashboardError(ctx, "assemble_snapshot", "snapshot assembled with load error",
			slog.String("error", loadErr.Error()))
	}
	return snap
}
