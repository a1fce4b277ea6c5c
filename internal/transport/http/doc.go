// Package http implements the HTTP handlers for the WorkPulse dashboard.
// Handlers stay thin: they parse and validate the request, call one
// service method, and shape the response. Aggregation, caching, and
// workbook access all live behind the service interfaces.
//
// # Handlers
//
// The package exposes one handler type per resource:
//
//   - DashboardHandler: snapshot reads, manual reloads, and the
//     clients-on-date query under /api/dashboard
//   - HealthHandler: liveness, readiness, and version endpoints
//   - StatsHandler: cache, hub, and runtime counters under /api/stats
//   - ClientLogHandler: sink for browser-side log batches
//
// plus ServeDashboardPage, which renders the dashboard page itself from
// the embedded assets.
//
// Handlers with more than one route carry a Routes method returning a
// chi.Router, so the application wires them with r.Mount and the route
// table reads top to bottom in one place.
//
// # Responses
//
// Successful JSON responses use a uniform envelope:
//
//	{"status": "success", "data": {...}}
//
// Failures render RFC 7807 problem documents through the shared
// ErrorHandler, with a trace_id extension tying the response to the
// request's log lines:
//
//	{
//	    "type": "/errors/validation",
//	    "title": "Bad Request",
//	    "status": 400,
//	    "detail": "Date is required in YYYY-MM-DD format",
//	    "instance": "/api/dashboard/clients",
//	    "trace_id": "..."
//	}
//
// One deliberate exception: dashboard snapshot requests never surface
// load failures as HTTP errors. A snapshot always renders, carrying an
// empty table and the failure message inline, so the page stays up even
// when the workbook is missing or malformed.
//
// # Testing
//
// Handler tests drive the Routes router with httptest and stub the
// service interfaces; nothing in this package touches a real workbook.
package http
