package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apierrors "workpulse/internal/errors"
)

// maxClientLogBytes caps client log payloads. A single browser log entry
// never legitimately needs more.
const maxClientLogBytes = 64 << 10

// ClientLogHandler ingests log entries posted by the dashboard page so
// browser-side failures show up in the server log.
type ClientLogHandler struct {
	logger *slog.Logger
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger) *ClientLogHandler {
	return &ClientLogHandler{logger: logger.With(slog.String("component", "client_log"))}
}

// LogRequest is one log entry posted by the page.
type LogRequest struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Source  string                 `json:"source,omitempty"`
}

// Handle processes POST /api/logs.
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxClientLogBytes)

	var req LogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, apierrors.NewValidationError("Invalid request format"))
		return
	}

	source := req.Source
	if source == "" {
		source = "dashboard"
	}

	attrs := []slog.Attr{
		slog.String("client_source", source),
	}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}

	h.logger.LogAttrs(r.Context(), clientLogLevel(req.Level), req.Message, attrs...)

	render.JSON(w, r, map[string]interface{}{
		"success": true,
	})
}

// clientLogLevel maps a client-supplied level name onto slog. Unknown
// names log at info rather than being rejected: a misbehaving page is
// exactly when we want its messages.
func clientLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
