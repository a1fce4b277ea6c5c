package sheet

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"workpulse/internal/infrastructure"
	"workpulse/pkg/contracts/domain"
)

// TableLoader is the slice of Loader the cache needs.
type TableLoader interface {
	Load(path, sheetName string) (*domain.Table, error)
}

// Entry is one load result. Table is never nil; a failed load carries
// domain.EmptyTable() plus the error so the dashboard can render zeros
// with the problem reported inline.
type Entry struct {
	Table    *domain.Table
	LoadErr  error
	LoadedAt time.Time
}

// CacheStats exposes cache counters for health reporting.
type CacheStats struct {
	Hits     int64     `json:"hits"`
	Misses   int64     `json:"misses"`
	Reloads  int64     `json:"reloads"`
	LastLoad time.Time `json:"last_load"`
}

// Cache is the single-slot holder of the last workbook load. Readers get
// the current entry via an atomic pointer load and writers swap the whole
// entry at once, so a reader never observes a partially loaded table.
// Concurrent readers that hit an expired slot collapse into one underlying
// load via singleflight.
type Cache struct {
	loader TableLoader
	path   string
	sheet  string
	ttl    time.Duration

	// now is the clock; tests substitute it to drive TTL expiry.
	now func() time.Time

	entry   atomic.Pointer[Entry]
	group   singleflight.Group
	logger  *slog.Logger
	metrics *infrastructure.DashboardMetrics

	hits    atomic.Int64
	misses  atomic.Int64
	reloads atomic.Int64
}

// NewCache creates a cache over the workbook at path. An empty sheet name
// selects the workbook's first sheet. ttl bounds how stale a cached table
// may get before the next read reloads it; the watcher invalidates earlier
// when the file changes.
func NewCache(loader TableLoader, path, sheet string, ttl time.Duration, metrics *infrastructure.DashboardMetrics, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		loader:  loader,
		path:    path,
		sheet:   sheet,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "sheet_cache")),
		metrics: metrics,
	}
}

// Get returns the current table, reloading from disk when the slot is
// empty or older than the TTL. A load failure is folded into the entry:
// callers always receive a usable table alongside the error.
func (c *Cache) Get(ctx context.Context) (*domain.Table, error) {
	if e := c.entry.Load(); e != nil && c.now().Sub(e.LoadedAt) < c.ttl {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.SheetCacheHits.Add(ctx, 1)
		}
		return e.Table, e.LoadErr
	}

	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.SheetCacheMisses.Add(ctx, 1)
	}

	e := c.load(ctx)
	return e.Table, e.LoadErr
}

// Refresh forces an immediate reload regardless of TTL and returns the
// fresh entry's table. The watcher calls this after invalidating so push
// payloads carry current data.
func (c *Cache) Refresh(ctx context.Context) (*domain.Table, error) {
	c.Invalidate()
	e := c.load(ctx)
	return e.Table, e.LoadErr
}

// Invalidate marks the slot stale. The next Get reloads from disk.
func (c *Cache) Invalidate() {
	c.entry.Store(nil)
}

// Peek returns the current entry without triggering a load, or false when
// nothing has been loaded yet. Health checks use it to report workbook
// state without touching the disk.
func (c *Cache) Peek() (Entry, bool) {
	e := c.entry.Load()
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	s := CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Reloads: c.reloads.Load(),
	}
	if e := c.entry.Load(); e != nil {
		s.LastLoad = e.LoadedAt
	}
	return s
}

// load performs the underlying read, collapsed across concurrent callers.
// Every caller of the collapsed load observes the same entry.
func (c *Cache) load(ctx context.Context) *Entry {
	v, _, _ := c.group.Do("load", func() (interface{}, error) {
		start := time.Now()
		table, err := c.loader.Load(c.path, c.sheet)
		e := &Entry{
			Table:    table,
			LoadErr:  err,
			LoadedAt: c.now(),
		}
		c.entry.Store(e)
		c.reloads.Add(1)

		infrastructure.RecordSheetReload(ctx, c.metrics, time.Since(start), len(table.Rows), err)

		if err != nil {
			c.logger.Warn("workbook reload failed",
				slog.String("path", c.path),
				slog.String("error", err.Error()))
		} else {
			c.logger.Debug("workbook reloaded",
				slog.String("path", c.path),
				slog.Int("rows", len(table.Rows)))
		}
		return e, nil
	})
	return v.(*Entry)
}
