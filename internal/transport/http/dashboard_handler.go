package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "workpulse/internal/errors"
	"workpulse/internal/infrastructure"
	v1 "workpulse/pkg/contracts/api/v1"
	"workpulse/pkg/contracts/events"
)

// DashboardHandler handles dashboard HTTP requests with RFC 7807 compliance
type DashboardHandler struct {
	service      DashboardServiceInterface
	broadcaster  SnapshotBroadcaster
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
}

// NewDashboardHandler creates a new dashboard handler with RFC 7807 error
// handling. broadcaster may be nil when no pages need push updates.
func NewDashboardHandler(service DashboardServiceInterface, broadcaster SnapshotBroadcaster, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		broadcaster:  broadcaster,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
	}
}

// Routes returns the dashboard routes with proper Chi patterns
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetSnapshot)
	r.Post("/reload", h.Reload)
	r.Get("/clients", h.GetClientsOnDate)

	return r
}

// GetSnapshot handles GET /api/dashboard. Load failures do not fail the
// request: the snapshot carries them inline so the page can render an
// empty table with an error banner.
func (h *DashboardHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	snap := h.service.Snapshot(r.Context())

	h.logger.InfoContext(r.Context(), "snapshot served",
		slog.String("request_id", reqID),
		slog.Int("rows", snap.RowCount),
		slog.Bool("load_failed", snap.LoadError != ""),
	)

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   snap,
	})
}

// Reload handles POST /api/dashboard/reload with a forced refresh.
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "manual reload requested",
		slog.String("request_id", reqID),
	)

	snap := h.service.Reload(r.Context())

	// Other open pages should see manually reloaded data too.
	if h.broadcaster != nil {
		h.broadcaster.BroadcastSnapshotWithTrace(&snap, events.RefreshSourceManual,
			infrastructure.GetTraceID(r.Context()))
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": v1.ReloadResponse{
			Reloaded: true,
			Snapshot: &snap,
		},
	})
}

// GetClientsOnDate handles GET /api/dashboard/clients?date=YYYY-MM-DD.
func (h *DashboardHandler) GetClientsOnDate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	req := v1.ClientsOnDateRequest{Date: r.URL.Query().Get("date")}
	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(
			"date", "Date is required in YYYY-MM-DD format"))
		return
	}

	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(
			"date", "Date is required in YYYY-MM-DD format"))
		return
	}

	clients, err := h.service.ClientsOn(r.Context(), day)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "clients-on-date failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("date", req.Date),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data": v1.ClientsOnDateResponse{
			Date:    req.Date,
			Clients: clients,
		},
	})
}
