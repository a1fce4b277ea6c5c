// Package services holds the business logic between the HTTP handlers
// and the sheet layer. A service owns one slice of behavior, takes its
// dependencies as interfaces, and never touches the ResponseWriter; the
// handlers stay translation-only and the rules stay testable without a
// server.
//
// # Available Services
//
// The package provides two services:
//
//   - DashboardService: assembles the dashboard snapshot from the cached
//     metrics table and the calculators, with "today" supplied by an
//     injected clock. Load failures are reported inline on the snapshot,
//     never as request errors.
//   - HealthService: liveness and readiness, folding in workbook
//     presence, the last load outcome, watcher state, and hub state.
//
// # Construction
//
// Constructors take the narrow interfaces a service actually calls plus
// a *slog.Logger, and bind a service attribute so every line the service
// logs is attributable:
//
//	service := NewDashboardService(cache, time.Now, logger)
//
// # Errors
//
// Methods that can fail return typed application errors (validation,
// not found, parsing, storage) that the transport layer maps onto HTTP
// statuses. The snapshot path is the exception: it degrades to an empty
// table with the error string inline, because the dashboard must always
// render.
//
// # Testing
//
// Tests substitute the source interfaces with in-memory fakes:
//
//	src := &fakeSource{table: tbl}
//	service := NewDashboardService(src, clock, logger)
//	snap := service.Snapshot(ctx)
package services
