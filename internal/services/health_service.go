package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"workpulse/internal/sheet"
)

// WatcherState is the slice of the change watcher health checks need.
type WatcherState interface {
	Watching() bool
}

// HubState is the slice of the WebSocket hub health checks need.
type HubState interface {
	IsRunning() bool
	ClientCount() int
}

// CacheState is the slice of the sheet cache health checks need.
type CacheState interface {
	Peek() (sheet.Entry, bool)
	Stats() sheet.CacheStats
}

// HealthService reports liveness and readiness for the dashboard. A
// missing workbook or a stopped watcher degrades the report but does not
// flip it to not-ready: the dashboard keeps rendering either way.
type HealthService struct {
	version      string
	workbookPath string
	cache        CacheState
	watcher      WatcherState
	hub          HubState
	startTime    time.Time
	logger       *slog.Logger
}

// HealthStatus is the body of every health endpoint response.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`

	// Runtime is filled on liveness responses, Services on readiness.
	Runtime  map[string]interface{} `json:"runtime,omitempty"`
	Services map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth describes one component inside a readiness response.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a health service. watcher may be nil when the
// watcher never started; cache and hub are required.
func NewHealthService(version, workbookPath string, cache CacheState, watcher WatcherState, hub HubState, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("service", "health"))

	logger.Info("health service initialized",
		slog.String("version", version),
		slog.String("workbook", workbookPath))

	return &HealthService{
		version:      version,
		workbookPath: workbookPath,
		cache:        cache,
		watcher:      watcher,
		hub:          hub,
		startTime:    time.Now(),
		logger:       logger,
	}
}

// HealthCheck returns overall health status.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports per-component state. Overall status is "ready"
// unless a component is hard-down ("not_ready" wins over "degraded").
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	checks := map[string]interface{}{
		"workbook":  hs.checkWorkbookHealth(),
		"watcher":   hs.checkWatcherHealth(),
		"websocket": hs.checkWebSocketHealth(),
	}

	overall := "ready"
	for _, check := range checks {
		sh, ok := check.(ServiceHealth)
		if !ok {
			continue
		}
		switch sh.Status {
		case "not_ready":
			overall = "not_ready"
		case "degraded":
			if overall == "ready" {
				overall = "degraded"
			}
		}
	}

	return HealthStatus{
		Status:    overall,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  checks,
	}
}

// LivenessCheck returns liveness status.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version and build environment information.
func (hs *HealthService) Version() map[string]interface{} {
	return map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
}

// checkWorkbookHealth reports on the tracked file and the last load.
// A missing workbook is degraded, not fatal: the dashboard renders empty
// metrics with the error inline.
func (hs *HealthService) checkWorkbookHealth() ServiceHealth {
	if _, err := os.Stat(hs.workbookPath); err != nil {
		return ServiceHealth{
			Status:  "degraded",
			Message: fmt.Sprintf("workbook not found: %s", hs.workbookPath),
		}
	}

	if hs.cache != nil {
		if entry, ok := hs.cache.Peek(); ok && entry.LoadErr != nil {
			return ServiceHealth{
				Status:  "degraded",
				Message: fmt.Sprintf("last load failed: %v", entry.LoadErr),
			}
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "workbook readable",
	}
}

// checkWatcherHealth reports on auto-refresh. A stopped watcher only
// degrades: the cache TTL still picks up changes, just slower.
func (hs *HealthService) checkWatcherHealth() ServiceHealth {
	if hs.watcher == nil || !hs.watcher.Watching() {
		return ServiceHealth{
			Status:  "degraded",
			Message: "change watcher not running; refresh limited to cache TTL",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "watching workbook for changes",
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkWebSocketHealth reports on the push hub.
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil || !hs.hub.IsRunning() {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "websocket hub not running",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d client(s) connected", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}
