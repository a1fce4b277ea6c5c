package infrastructure

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"workpulse/internal/config"
)

// TestOTelInitialization initializes the full stack once; the prometheus
// exporter registers on the default registry, so no other test repeats it.
func TestOTelInitialization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := DefaultOTelConfig()
	cfg.EnableTracing = true
	cfg.EnableMetrics = true

	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	metrics, err := CreateDashboardMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	assert.NotNil(t, metrics.HTTPRequestsTotal)
	assert.NotNil(t, metrics.HTTPRequestDuration)
	assert.NotNil(t, metrics.SheetReloadsTotal)
	assert.NotNil(t, metrics.SheetReloadDuration)
	assert.NotNil(t, metrics.SheetReloadErrors)
	assert.NotNil(t, metrics.SheetCacheHits)
	assert.NotNil(t, metrics.SheetCacheMisses)
	assert.NotNil(t, metrics.WatcherEventsTotal)

	ctx := context.Background()
	RecordSheetReload(ctx, metrics, 25*time.Millisecond, 10, nil)
	RecordSheetReload(ctx, metrics, 5*time.Millisecond, 0, assert.AnError)
	RecordWatcherEvent(ctx, metrics, "write")
	RecordHTTPRequest(ctx, metrics, http.MethodGet, "/api/dashboard", http.StatusOK, 3*time.Millisecond)

	// The prometheus endpoint serves what was just recorded.
	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(shutdownCtx))
}

func TestOTelConfigFromApp(t *testing.T) {
	appCfg := config.ObservabilityConfig{
		ServiceName:    "workpulse-test",
		MetricsEnabled: false,
		TracingEnabled: true,
	}

	cfg := OTelConfigFromApp(appCfg)
	assert.Equal(t, "workpulse-test", cfg.ServiceName)
	assert.False(t, cfg.EnableMetrics)
	assert.True(t, cfg.EnableTracing)

	cfg = OTelConfigFromApp(config.ObservabilityConfig{MetricsEnabled: true})
	assert.Equal(t, config.ServiceName, cfg.ServiceName)
	assert.True(t, cfg.EnableMetrics)
}

func TestTraceCorrelation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := DefaultOTelConfig()
	cfg.EnableTracing = true
	cfg.MetricExporter = "none"
	cfg.EnableMetrics = false

	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx := context.Background()

	tracer := otel.Tracer("test")
	ctx, span := tracer.Start(ctx, "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)

	expectedTraceID := span.SpanContext().TraceID().String()
	assert.Equal(t, expectedTraceID, traceID)

	ctx = WithTraceID(ctx, traceID)
	assert.Equal(t, traceID, GetTraceID(ctx))

	// RecordError must not panic on a recording span.
	RecordError(ctx, assert.AnError)
	assert.True(t, span.IsRecording())
}

func TestDashboardMetricsWithoutExporter(t *testing.T) {
	meter := sdkmetric.NewMeterProvider().Meter("test")

	metrics, err := CreateDashboardMetrics(meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	// Recording against nil metrics is a no-op, not a panic.
	ctx := context.Background()
	RecordSheetReload(ctx, nil, time.Millisecond, 1, nil)
	RecordWatcherEvent(ctx, nil, "create")
	RecordHTTPRequest(ctx, nil, http.MethodGet, "/", http.StatusOK, time.Millisecond)
}

func TestUnsupportedExporters(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := DefaultOTelConfig()
	cfg.EnableTracing = true
	cfg.TraceExporter = "otlp"
	_, err := InitializeOTel(cfg, logger)
	assert.Error(t, err)

	cfg = DefaultOTelConfig()
	cfg.EnableMetrics = true
	cfg.MetricExporter = "statsd"
	_, err = InitializeOTel(cfg, logger)
	assert.Error(t, err)
}

func TestRuntimeCollector(t *testing.T) {
	meter := sdkmetric.NewMeterProvider().Meter("test")

	collector, err := NewRuntimeCollector(meter, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		collector.Start(ctx)
		close(done)
	}()

	stats := collector.GetCurrentStats(ctx)
	require.NotNil(t, stats)
	assert.Greater(t, stats.Goroutines, int64(0))
	assert.GreaterOrEqual(t, stats.ProcessUptime, time.Duration(0))

	formatted := stats.FormatStats()
	assert.Contains(t, formatted, "goroutines")
	assert.Contains(t, formatted, "uptime_seconds")

	collector.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}

	// Stop must be idempotent; Application.Stop may race shutdown paths.
	assert.NotPanics(t, func() { collector.Stop() })
}
