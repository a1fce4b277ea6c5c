package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"workpulse/internal/infrastructure"
)

// Problem type URIs for errors any endpoint can produce.
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeServiceDown     = "/errors/service-unavailable"
	TypeTimeout         = "/errors/timeout"
	TypePayloadTooLarge = "/errors/payload-too-large"
)

// Problem type URIs for workbook and push specific failures.
const (
	TypeWorkbookNotFound  = "/errors/workbook/not-found"
	TypeWorkbookMalformed = "/errors/workbook/malformed"
	TypeWatcherDown       = "/errors/watcher/unavailable"
	TypeWebSocketUpgrade  = "/errors/websocket/upgrade-failed"
)

// ErrorHandler turns errors into RFC 7807 problem documents. Handlers
// hand it raw errors and it picks the status, type URI, and extensions.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an error handler. includeStack controls whether
// responses carry stack traces and should be off outside development.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// requestTraceID resolves the trace id for a request, preferring the
// infrastructure trace id and falling back to chi's request id.
func requestTraceID(ctx context.Context) string {
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		return traceID
	}
	return middleware.GetReqID(ctx)
}

// problem builds a ProblemDetails with the request path as its instance.
func problem(r *http.Request, status int, typeURI, title, detail string) *ProblemDetails {
	return NewProblemDetails(status, typeURI, title, detail, r.URL.Path)
}

// HandleError logs err, records it on the active span, and writes the
// matching problem document. A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := requestTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID),
	)

	// The active span should carry the failure too.
	infrastructure.RecordError(r.Context(), err)

	p := h.ErrorToProblem(err, r)
	p.WithExtension("trace_id", reqID)

	if h.includeStack {
		p.WithExtension("stack", getStackTrace())
	}

	WriteProblem(w, p)
}

// ErrorToProblem maps an error to problem details. Typed errors map by
// type; everything else falls back to message sniffing, then to a 500.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	// Cancellation beats every other classification.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return problem(r, http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request took too long to process and was cancelled")
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return h.appErrorToProblem(appErr, r)
	}

	// Untyped errors: classify by message before giving up.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return problem(r, http.StatusNotFound, TypeNotFound, "Resource Not Found", msg)

	case strings.Contains(msg, "no such file"):
		return problem(r, http.StatusNotFound, TypeWorkbookNotFound, "Workbook Not Found",
			"The workbook file does not exist at the configured path.")

	case strings.Contains(msg, "missing required column"):
		return problem(r, http.StatusUnprocessableEntity, TypeWorkbookMalformed, "Workbook Malformed", msg)

	default:
		return problem(r, http.StatusInternalServerError, TypeInternal, "Internal Server Error",
			"An unexpected error occurred while processing your request")
	}
}

// apiErrorToProblem maps an APIError code onto a problem type URI.
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "INVALID_JSON":
		problemType = TypeValidation
	case "NOT_FOUND":
		problemType = TypeNotFound
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
	case "WORKBOOK_NOT_FOUND":
		problemType = TypeWorkbookNotFound
	case "WORKBOOK_MALFORMED":
		problemType = TypeWorkbookMalformed
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	case "WATCHER_UNAVAILABLE":
		problemType = TypeWatcherDown
	case "WEBSOCKET_UPGRADE_FAILED":
		problemType = TypeWebSocketUpgrade
	}

	p := problem(r, apiErr.StatusCode, problemType, http.StatusText(apiErr.StatusCode), apiErr.Message).
		WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		p.WithExtension("details", apiErr.Details)
	}

	return p
}

// appErrorToProblem maps a typed application error onto an HTTP status
// and problem type. Unmapped types stay 500 internal.
func (h *ErrorHandler) appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	status := http.StatusInternalServerError
	problemType := TypeInternal

	switch appErr.Type {
	case ErrTypeValidation:
		status = http.StatusBadRequest
		problemType = TypeValidation
	case ErrTypeNotFound:
		status = http.StatusNotFound
		problemType = TypeNotFound
	case ErrTypeParsing:
		status = http.StatusUnprocessableEntity
		problemType = TypeWorkbookMalformed
	case ErrTypeStorage:
		// A storage error over a missing file means the workbook is gone,
		// not that the server broke.
		if errors.Is(appErr, fs.ErrNotExist) {
			status = http.StatusNotFound
			problemType = TypeWorkbookNotFound
		}
	case ErrTypeWatch:
		status = http.StatusServiceUnavailable
		problemType = TypeWatcherDown
	}

	p := problem(r, status, problemType, http.StatusText(status), appErr.Error()).
		WithExtension("error_type", string(appErr.Type))

	if len(appErr.Context) > 0 {
		p.WithExtension("context", appErr.Context)
	}

	return p
}

// HandlePanic writes the 500 problem document for a recovered panic.
// Panic details stay out of the response unless includeStack is set.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := requestTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
		slog.String("request_id", reqID),
	)

	p := problem(r, http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"An unexpected error occurred").
		WithExtension("trace_id", reqID)

	if h.includeStack {
		p.WithExtension("panic", fmt.Sprintf("%v", recovered))
		p.WithExtension("stack", getStackTrace())
	}

	WriteProblem(w, p)
}

// NotFound is the router's fallback for unknown paths.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	p := problem(r, http.StatusNotFound, TypeNotFound, "Not Found",
		"The requested resource was not found").
		WithExtension("trace_id", requestTraceID(r.Context()))

	WriteProblem(w, p)
}

// MethodNotAllowed is the router's fallback for known paths hit with
// the wrong verb.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	p := problem(r, http.StatusMethodNotAllowed, TypeInternal, "Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method)).
		WithExtension("trace_id", requestTraceID(r.Context()))

	WriteProblem(w, p)
}

// getStackTrace captures the current goroutine's stack, truncated to 8KB.
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
