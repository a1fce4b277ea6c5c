package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"workpulse/internal/config"
	"workpulse/internal/errors"
	"workpulse/internal/infrastructure"
	customMiddleware "workpulse/internal/middleware"
	"workpulse/internal/services"
	"workpulse/internal/sheet"
	handlers "workpulse/internal/transport/http"
	"workpulse/internal/watcher"
	ws "workpulse/internal/websocket"
	"workpulse/pkg/contracts"
	"workpulse/pkg/contracts/events"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
)

// AppName identifies the application in startup logs.
const AppName = "WorkPulse - Daily Metric Tracking Dashboard"

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Router           *chi.Mux
	Server           *http.Server
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	Metrics          *infrastructure.DashboardMetrics
	RuntimeCollector *infrastructure.RuntimeCollector
	FrontendFS       fs.FS

	Hub              *ws.Hub
	Cache            *sheet.Cache
	Watcher          *watcher.Watcher
	DashboardService *services.DashboardService
	HealthService    *services.HealthService
}

// NewApplication creates a new application instance with dependency injection.
// configPath may be empty, in which case the config file is discovered in the
// usual locations. frontendFS holds the embedded dashboard page and assets.
func NewApplication(configPath string, frontendFS fs.FS) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("workbook", cfg.Sheet.Path))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFromApp(cfg.Observability), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateDashboardMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard metrics: %w", err)
	}

	// Initialize WebSocket OpenTelemetry metrics
	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket OpenTelemetry metrics: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		FrontendFS:    frontendFS,
	}

	if cfg.Observability.MetricsEnabled {
		collector, err := infrastructure.NewRuntimeCollector(otelProviders.Meter, 15*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to create runtime metrics collector: %w", err)
		}
		app.RuntimeCollector = collector
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires the hub, cache, watcher, and services in
// dependency order.
func (a *Application) initializeServices() error {
	// WebSocket hub first: the watcher callback broadcasts through it.
	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.Hub = hub

	loader := sheet.NewLoader(a.Logger)
	a.Cache = sheet.NewCache(loader, a.Config.Sheet.Path, a.Config.Sheet.Name, a.Config.Sheet.CacheTTL, a.Metrics, a.Logger)

	a.DashboardService = services.NewDashboardService(a.Cache, nil, a.Logger)

	// The watcher is optional: when it cannot start, the dashboard still
	// works off the cache TTL and the page loses only its live refresh.
	var watcherState services.WatcherState
	if a.Config.Watcher.Enabled {
		w, err := watcher.New(a.Config.Sheet.Path, a.onWorkbookChange, a.Metrics, a.Logger)
		if err != nil {
			a.Logger.Warn("Change watcher unavailable, refresh limited to cache TTL",
				slog.String("error", err.Error()),
				slog.String("path", a.Config.Sheet.Path))
			a.DashboardService.SetAutoRefresh(false)
			a.Hub.BroadcastWatcherStatus(false, "live refresh unavailable; data refreshes on cache TTL")
		} else {
			a.Watcher = w
			watcherState = w
		}
	} else {
		a.DashboardService.SetAutoRefresh(false)
	}

	a.HealthService = services.NewHealthService(
		contracts.Version,
		a.Config.Sheet.Path,
		a.Cache,
		watcherState,
		a.Hub,
		a.Logger,
	)

	return nil
}

// onWorkbookChange runs on the watcher goroutine for every create, write,
// or rename of the tracked workbook. It forces a reload and pushes the
// fresh snapshot to every connected page.
func (a *Application) onWorkbookChange(ctx context.Context, op string) {
	// Watcher events start outside any request, so mint a trace ID here
	// to tie the reload, the log line, and the push together.
	ctx = infrastructure.EnsureTraceID(ctx)

	snap := a.DashboardService.Reload(ctx)
	a.Hub.BroadcastSnapshotWithTrace(&snap, events.RefreshSourceWatcher, infrastructure.GetTraceID(ctx))

	a.Logger.InfoContext(ctx, "snapshot pushed after workbook change",
		slog.String("op", op),
		slog.Int("rows", snap.RowCount),
		slog.Bool("load_failed", snap.LoadError != ""))
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Apply MINIMAL middleware that won't interfere with WebSocket
	// These are safe because they don't wrap the ResponseWriter
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket route with minimal middleware and tracing
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc(config.WebSocketEndpoint, a.handleWebSocket)

	// Prometheus scrape endpoint stays outside the full group to keep
	// request logs free of scraper noise.
	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	// Static assets with their own light middleware
	if a.FrontendFS != nil {
		a.setupStaticRoutes(r)
	}

	errorHandler := errors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	// Everything else gets the full middleware chain
	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger, errorHandler))

		secureHeaders := customMiddleware.DefaultSecureHeaders()
		secureHeaders.DevMode = a.Config.Logging.Development
		r.Use(secureHeaders.Handler)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.getCORSConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r, errorHandler)
		a.setupHTMLRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, errorHandler *errors.ErrorHandler) {
	r.Route("/api", func(r chi.Router) {
		// Fallbacks before the mounts, so mounted subrouters inherit them.
		r.NotFound(errorHandler.NotFound)
		r.MethodNotAllowed(errorHandler.MethodNotAllowed)

		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.NewValidationMiddleware(a.Logger, errorHandler).ValidateRequest)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

			// Health handler
			healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
			r.Mount("/health", healthHandler.Routes())
			r.Get("/version", healthHandler.Version)

			// Dashboard handler
			dashboardHandler := handlers.NewDashboardHandler(a.DashboardService, a.Hub, a.Logger, errorHandler)
			r.Mount("/dashboard", dashboardHandler.Routes())

			// Counters for the cache, the hub, and the Go runtime. The
			// typed-nil check matters: a nil *RuntimeCollector in a
			// non-nil interface would dodge the handler's nil guard.
			var runtimeStats handlers.RuntimeStatsSource
			if a.RuntimeCollector != nil {
				runtimeStats = a.RuntimeCollector
			}
			statsHandler := handlers.NewStatsHandler(a.Cache, a.Hub, runtimeStats, a.Logger)
			r.Mount("/stats", statsHandler.Routes())

			// Browser-side log sink
			r.Post("/logs", handlers.NewClientLogHandler(a.Logger).Handle)
		})
	})
}

// setupStaticRoutes serves the embedded static assets
func (a *Application) setupStaticRoutes(r chi.Router) {
	staticFS, err := fs.Sub(a.FrontendFS, "static")
	if err != nil {
		a.Logger.Warn("Static assets unavailable", slog.String("error", err.Error()))
		return
	}

	r.Route("/static", func(r chi.Router) {
		r.Use(customMiddleware.Compress(5))
		r.Use(middleware.SetHeader("Cache-Control", "public, max-age=86400"))
		r.Handle("/*", http.StripPrefix("/static", http.FileServer(http.FS(staticFS))))
	})
}

// setupHTMLRoutes serves the dashboard page
func (a *Application) setupHTMLRoutes(r chi.Router) {
	pageData := handlers.DashboardPageData{
		Title:   config.DashboardTitle,
		Version: contracts.Version,
		Notice:  config.AutoRefreshNotice,
	}

	r.With(customMiddleware.TraceMiddleware("dashboard.page")).
		Get("/", handlers.ServeDashboardPage(a.FrontendFS, pageData))
}

// getCORSConfig returns CORS configuration based on environment
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	config := customMiddleware.CORSConfig{
		AllowedOrigins:   a.Config.Security.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	if a.Config.Logging.Development {
		// Local development runs the page from whatever port is handy.
		config.AllowedOrigins = []string{"*"}
	}

	return config
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level),
		slog.String("workbook", a.Config.Sheet.Path),
		slog.Duration("cache_ttl", a.Config.Sheet.CacheTTL))

	if a.Watcher != nil {
		a.Watcher.Start(ctx)
	}

	if a.RuntimeCollector != nil {
		go a.RuntimeCollector.Start(ctx)
	}

	// Prime the cache so the first page render does not pay for the load.
	// A failed load is fine here; the entry carries the error inline.
	go func() {
		loadCtx, loadCancel := context.WithTimeout(ctx, 30*time.Second)
		defer loadCancel()
		if _, err := a.Cache.Get(loadCtx); err != nil {
			a.Logger.WarnContext(loadCtx, "initial workbook load failed",
				slog.String("error", err.Error()),
				slog.String("path", a.Config.Sheet.Path))
		}
	}()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// performStartupHealthCheck reports conditions worth knowing at startup
// without failing it: the dashboard renders either way.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	if _, err := os.Stat(a.Config.Sheet.Path); err != nil {
		warnings = append(warnings, fmt.Sprintf("workbook not found at %s; dashboard renders empty until it appears", a.Config.Sheet.Path))
	}

	if a.Config.Watcher.Enabled && (a.Watcher == nil || !a.Watcher.Watching()) {
		warnings = append(warnings, "change watcher not running; refresh limited to cache TTL")
	}

	if len(warnings) > 0 {
		return fmt.Errorf("%s", strings.Join(warnings, "; "))
	}
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.Watcher != nil {
		if err := a.Watcher.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing watcher", slog.String("error", err.Error()))
		}
	}

	if a.RuntimeCollector != nil {
		a.RuntimeCollector.Stop()
	}

	a.Hub.Stop()

	if p := a.OTelProviders; p != nil {
		if err := p.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run starts the application and blocks until an interrupt arrives or an
// internal failure cancels the run context, then shuts everything down.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-interrupts:
		a.Logger.InfoContext(ctx, "Received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.InfoContext(context.Background(), "Shutting down after internal error")
	}

	// The run context may already be cancelled; shutdown needs its own.
	return a.Stop(context.Background())
}

// handleWebSocket upgrades the connection and hands it to the hub.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set X-Request-ID on a WebSocket dial, so most
	// upgrades mint their own identifier here.
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}

	ctx := infrastructure.WithTraceID(r.Context(), reqID)
	a.Logger.InfoContext(ctx, "WebSocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")),
		slog.String("host", r.Host))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Allow if no origin (local file or same-origin request)
			if origin == "" {
				return true
			}

			if a.Config.Logging.Development {
				return true
			}

			for _, allowed := range a.Config.Security.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}

			a.Logger.WarnContext(ctx, "WebSocket origin rejected",
				slog.String("origin", origin),
				slog.Any("allowed_origins", a.Config.Security.AllowedOrigins))
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.ErrorContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			// A custom Error callback suppresses gorilla's own response,
			// so the rejection body is written here.
			errors.WriteError(w, errors.NewWithDetails(status,
				"WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed", reason.Error()))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.Stats().RecordFailure("upgrade_failed")
		if otelMetrics := ws.GetOTelMetrics(); otelMetrics != nil {
			otelMetrics.RecordConnectionError(ctx, "upgrade_failed")
		}
		a.Logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	ws.ServeWSWithTrace(a.Hub, conn, reqID)
}
