package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"workpulse/internal/infrastructure"
	"workpulse/internal/sheet"
)

// CacheStatsSource exposes the sheet cache counters.
type CacheStatsSource interface {
	Stats() sheet.CacheStats
}

// HubStatsSource exposes the WebSocket hub counters.
type HubStatsSource interface {
	GetHubMetrics() map[string]interface{}
}

// RuntimeStatsSource samples the Go runtime on demand.
type RuntimeStatsSource interface {
	GetCurrentStats(ctx context.Context) *infrastructure.RuntimeStats
}

// StatsHandler reports counters for the dashboard's own moving parts:
// sheet cache behavior, WebSocket fanout, and the Go runtime.
type StatsHandler struct {
	cache   CacheStatsSource
	hub     HubStatsSource
	runtime RuntimeStatsSource
	logger  *slog.Logger
	start   time.Time
}

// NewStatsHandler creates a stats handler over the given sources. Any
// source may be nil; its section is simply omitted from the payload.
func NewStatsHandler(cache CacheStatsSource, hub HubStatsSource, runtime RuntimeStatsSource, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		cache:   cache,
		hub:     hub,
		runtime: runtime,
		logger:  logger.With(slog.String("component", "stats_handler")),
		start:   time.Now(),
	}
}

// Routes returns the stats routes.
func (h *StatsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetStats)

	return r
}

// GetStats handles GET /api/stats with cache, hub, and runtime counters
// in one payload.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	data := map[string]interface{}{
		"uptime_seconds": int64(time.Since(h.start).Seconds()),
	}
	if h.cache != nil {
		data["cache"] = h.cache.Stats()
	}
	if h.hub != nil {
		data["websocket"] = h.hub.GetHubMetrics()
	}
	if h.runtime != nil {
		data["runtime"] = h.runtime.GetCurrentStats(r.Context()).FormatStats()
	}

	h.logger.DebugContext(r.Context(), "stats served",
		slog.String("request_id", reqID),
	)

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}
