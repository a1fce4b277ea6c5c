package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "workpulse/internal/errors"
)

// maxJSONBody bounds request bodies; dashboard payloads are tiny.
const maxJSONBody = 1 << 20

// ValidationMiddleware rejects malformed JSON bodies before they reach a
// handler. Field-level validation stays with the handlers; this layer only
// guards body size and JSON well-formedness.
type ValidationMiddleware struct {
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	maxBodySize  int64
}

// NewValidationMiddleware creates a new validation middleware
func NewValidationMiddleware(logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ValidationMiddleware {
	return &ValidationMiddleware{
		logger:       logger.With(slog.String("component", "validation_middleware")),
		errorHandler: errorHandler,
		maxBodySize:  maxJSONBody,
	}
}

// ValidateRequest validates request bodies on mutating methods
func (m *ValidationMiddleware) ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > m.maxBodySize {
			apiErr := apierrors.NewWithDetails(http.StatusRequestEntityTooLarge,
				"PAYLOAD_TOO_LARGE", "Request body exceeds maximum allowed size",
				map[string]interface{}{"max_size": m.maxBodySize, "size": r.ContentLength})
			m.errorHandler.HandleError(w, r, apiErr)
			return
		}

		if r.Body != nil && r.ContentLength > 0 {
			if apiErr := m.checkBody(r); apiErr != nil {
				m.errorHandler.HandleError(w, r, apiErr)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// checkBody reads the body, verifies it is well-formed JSON, and puts it
// back for the handler.
func (m *ValidationMiddleware) checkBody(r *http.Request) *apierrors.APIError {
	body, err := io.ReadAll(io.LimitReader(r.Body, m.maxBodySize))
	if err != nil {
		m.logger.ErrorContext(r.Context(), "failed to read request body",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		return apierrors.InvalidRequestWithError(err)
	}

	r.Body = io.NopCloser(bytes.NewReader(body))

	if len(body) > 0 && !json.Valid(body) {
		return apierrors.New(http.StatusBadRequest, "INVALID_JSON", "Request body contains invalid JSON")
	}
	return nil
}
