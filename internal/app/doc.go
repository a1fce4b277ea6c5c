// Package app wires the WorkPulse dashboard together and owns its
// lifecycle: configuration, logging, metrics, the sheet cache, the
// change watcher, the WebSocket hub, and the HTTP server, built in
// dependency order and torn down in reverse.
//
// # Startup
//
// NewApplication builds everything but starts nothing beyond the hub;
// Run starts the watcher, the runtime collector, and the HTTP listener,
// then blocks until SIGINT, SIGTERM, or a server error:
//
//	application, err := app.NewApplication(configPath, frontendFS)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Shutdown
//
// Stop drains in-flight requests within the configured shutdown
// timeout, stops the watcher so its filesystem handle is released,
// closes WebSocket clients through the hub, and flushes observability
// exporters last so the shutdown itself is still recorded.
//
// # Degraded Operation
//
// A missing workbook or a dead watcher never stops startup. The dashboard
// serves empty metrics with the load error inline, and refresh falls back
// to the cache TTL when the watcher is unavailable.
package app
