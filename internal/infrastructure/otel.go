package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"workpulse/internal/config"
	"workpulse/pkg/contracts"
)

// MeterName is the instrumentation scope for every tracer and meter the
// dashboard creates.
const MeterName = "workpulse"

// OTelConfig selects which telemetry signals the process emits and which
// exporters carry them.
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// TraceExporter accepts "stdout" or "none"; MetricExporter accepts
	// "prometheus" or "none". Unknown names fail initialization rather
	// than silently dropping telemetry.
	TraceExporter  string
	MetricExporter string

	EnableTracing bool
	EnableMetrics bool

	// SampleRatio is the fraction of traces kept, 0.0 through 1.0.
	SampleRatio float64
}

// OTelProviders bundles the live providers with the handles the rest of
// the module uses: the scoped Tracer and Meter, and the HTTP handler that
// serves the prometheus scrape endpoint. Disabled signals leave their
// fields nil.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	Tracer         trace.Tracer

	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler

	Logger *slog.Logger
}

// DefaultOTelConfig enables prometheus metrics and leaves tracing off. The
// ENVIRONMENT variable overrides the deployment name.
func DefaultOTelConfig() *OTelConfig {
	cfg := &OTelConfig{
		ServiceName:    config.ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    "development",
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		SampleRatio:    1.0,
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}
	return cfg
}

// OTelConfigFromApp overlays the application's observability settings on
// the defaults.
func OTelConfigFromApp(cfg config.ObservabilityConfig) *OTelConfig {
	otelCfg := DefaultOTelConfig()
	if cfg.ServiceName != "" {
		otelCfg.ServiceName = cfg.ServiceName
	}
	otelCfg.EnableMetrics = cfg.MetricsEnabled
	otelCfg.EnableTracing = cfg.TracingEnabled
	return otelCfg
}

// InitializeOTel stands up tracing and metrics per cfg and installs the
// global W3C trace context propagators. Callers must tolerate nil provider
// fields on the result.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()
	logger.InfoContext(ctx, "initializing opentelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res := newResource(cfg)
	providers := &OTelProviders{Logger: logger}

	if cfg.EnableTracing {
		tp, err := newTraceProvider(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("initialize tracing: %w", err)
		}
		if tp != nil {
			providers.TracerProvider = tp
			providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
			otel.SetTracerProvider(tp)
			logger.InfoContext(ctx, "tracing initialized",
				slog.String("exporter", cfg.TraceExporter),
				slog.Float64("sample_ratio", cfg.SampleRatio))
		}
	}

	if cfg.EnableMetrics {
		mp, scrape, err := newMeterProvider(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
		if mp != nil {
			providers.MeterProvider = mp
			providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
			providers.PrometheusHTTP = scrape
			otel.SetMeterProvider(mp)
			logger.InfoContext(ctx, "metrics initialized",
				slog.String("exporter", cfg.MetricExporter))
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// newResource describes this process on every exported span and metric.
func newResource(cfg *OTelConfig) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("service.instance.id", instanceID()),
	)
}

// newTraceProvider builds a batching tracer provider for the configured
// exporter. The "none" exporter yields a nil provider and no error.
func newTraceProvider(cfg *OTelConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	switch cfg.TraceExporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		exporter = exp
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %q", cfg.TraceExporter)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	), nil
}

// newMeterProvider builds the meter provider plus the HTTP handler serving
// its scrape endpoint. Every call owns a private prometheus registry, so
// repeated initialization in one process (tests, restarts) never collides
// on the global default registry.
func newMeterProvider(cfg *OTelConfig, res *resource.Resource) (*sdkmetric.MeterProvider, http.Handler, error) {
	switch cfg.MetricExporter {
	case "prometheus":
		registry := promclient.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		return mp, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
	case "none":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported metric exporter: %q", cfg.MetricExporter)
	}
}

// DashboardMetrics carries the dashboard's own instruments. The HTTP pair
// is recorded by middleware, the sheet instruments by the table cache, and
// the events counter by the workbook watcher.
type DashboardMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	SheetReloadsTotal   metric.Int64Counter
	SheetReloadDuration metric.Float64Histogram
	SheetReloadErrors   metric.Int64Counter
	SheetCacheHits      metric.Int64Counter
	SheetCacheMisses    metric.Int64Counter

	WatcherEventsTotal metric.Int64Counter
}

// CreateDashboardMetrics registers the dashboard's instruments on meter.
// A nil meter (metrics disabled) yields nil metrics, which every record
// helper treats as a no-op.
func CreateDashboardMetrics(meter metric.Meter) (*DashboardMetrics, error) {
	if meter == nil {
		return nil, nil
	}

	var (
		m   DashboardMetrics
		err error
	)

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.SheetReloadsTotal, err = meter.Int64Counter("sheet_reloads_total",
		metric.WithDescription("Total number of workbook reloads")); err != nil {
		return nil, err
	}
	if m.SheetReloadDuration, err = meter.Float64Histogram("sheet_reload_duration_seconds",
		metric.WithDescription("Workbook reload duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.SheetReloadErrors, err = meter.Int64Counter("sheet_reload_errors_total",
		metric.WithDescription("Total number of failed workbook reloads")); err != nil {
		return nil, err
	}
	if m.SheetCacheHits, err = meter.Int64Counter("sheet_cache_hits_total",
		metric.WithDescription("Total number of cache hits on the loaded table")); err != nil {
		return nil, err
	}
	if m.SheetCacheMisses, err = meter.Int64Counter("sheet_cache_misses_total",
		metric.WithDescription("Total number of cache misses on the loaded table")); err != nil {
		return nil, err
	}
	if m.WatcherEventsTotal, err = meter.Int64Counter("watcher_events_total",
		metric.WithDescription("Total number of filesystem events for the tracked workbook")); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordSheetReload records one reload attempt with its outcome.
func RecordSheetReload(ctx context.Context, m *DashboardMetrics, duration time.Duration, rows int, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
		m.SheetReloadErrors.Add(ctx, 1)
	}

	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.Int("rows", rows),
	)
	m.SheetReloadsTotal.Add(ctx, 1, attrs)
	m.SheetReloadDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordWatcherEvent records one filesystem event, labeled by operation
// (write, create, rename).
func RecordWatcherEvent(ctx context.Context, m *DashboardMetrics, op string) {
	if m == nil {
		return
	}

	m.WatcherEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(ctx context.Context, m *DashboardMetrics, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// Shutdown flushes and stops both providers, joining their errors.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		errs = append(errs, p.TracerProvider.Shutdown(ctx))
	}
	if p.MeterProvider != nil {
		errs = append(errs, p.MeterProvider.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("opentelemetry shutdown: %w", err)
	}

	p.Logger.InfoContext(ctx, "opentelemetry shutdown complete")
	return nil
}

// instanceID distinguishes concurrent deployments of the same service.
func instanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext returns the active trace ID, or "" when the context
// carries no span. Log lines and problem documents use it to correlate
// with traces.
func TraceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// RecordError marks the span in ctx as failed and attaches err as a span
// event. Without a recording span it does nothing.
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
