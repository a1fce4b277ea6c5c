package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeMetrics records Go runtime gauges for the dashboard process.
type RuntimeMetrics struct {
	goroutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	heapSys    metric.Int64Gauge
	gcPause    metric.Float64Histogram
	uptime     metric.Float64Gauge
}

// NewRuntimeMetrics registers the runtime instruments on the meter.
func NewRuntimeMetrics(meter metric.Meter) (*RuntimeMetrics, error) {
	var rm RuntimeMetrics
	var err error

	if rm.goroutines, err = meter.Int64Gauge("runtime_goroutines",
		metric.WithDescription("Live goroutine count")); err != nil {
		return nil, err
	}
	if rm.heapAlloc, err = meter.Int64Gauge("runtime_heap_alloc_bytes",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if rm.heapSys, err = meter.Int64Gauge("runtime_heap_sys_bytes",
		metric.WithDescription("Heap memory obtained from the OS"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if rm.gcPause, err = meter.Float64Histogram("runtime_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if rm.uptime, err = meter.Float64Gauge("runtime_process_uptime_seconds",
		metric.WithDescription("Process uptime"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return &rm, nil
}

// RuntimeStats is one sample of the process's runtime state.
type RuntimeStats struct {
	Goroutines    int64
	HeapAlloc     int64
	HeapSys       int64
	GCCount       uint32
	LastGCPause   time.Duration
	ProcessUptime time.Duration
	Timestamp     time.Time
}

func snapshotRuntime(start time.Time) RuntimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return RuntimeStats{
		Goroutines: int64(runtime.NumGoroutine()),
		HeapAlloc:  int64(ms.HeapAlloc),
		HeapSys:    int64(ms.HeapSys),
		GCCount:    ms.NumGC,
		// PauseNs is a circular buffer indexed by GC cycle.
		LastGCPause:   time.Duration(ms.PauseNs[(ms.NumGC+255)%256]),
		ProcessUptime: time.Since(start),
		Timestamp:     time.Now(),
	}
}

// Collect samples the runtime and records every gauge.
func (rm *RuntimeMetrics) Collect(ctx context.Context, start time.Time) *RuntimeStats {
	stats := snapshotRuntime(start)

	rm.goroutines.Record(ctx, stats.Goroutines)
	rm.heapAlloc.Record(ctx, stats.HeapAlloc)
	rm.heapSys.Record(ctx, stats.HeapSys)
	rm.uptime.Record(ctx, stats.ProcessUptime.Seconds())
	if stats.LastGCPause > 0 {
		rm.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}

	return &stats
}

// FormatStats renders the sample with human-scaled units for the stats
// endpoint and log lines.
func (stats *RuntimeStats) FormatStats() map[string]interface{} {
	return map[string]interface{}{
		"goroutines":       stats.Goroutines,
		"heap_alloc_mb":    stats.HeapAlloc / 1024 / 1024,
		"heap_sys_mb":      stats.HeapSys / 1024 / 1024,
		"gc_count":         stats.GCCount,
		"last_gc_pause_ms": stats.LastGCPause.Milliseconds(),
		"uptime_seconds":   stats.ProcessUptime.Seconds(),
		"timestamp":        stats.Timestamp.Format(time.RFC3339),
	}
}

// RuntimeCollector samples the runtime on a fixed interval.
type RuntimeCollector struct {
	metrics  *RuntimeMetrics
	start    time.Time
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRuntimeCollector registers the runtime instruments and prepares a
// collector that samples every interval.
func NewRuntimeCollector(meter metric.Meter, interval time.Duration) (*RuntimeCollector, error) {
	metrics, err := NewRuntimeMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("create runtime metrics: %w", err)
	}

	return &RuntimeCollector{
		metrics:  metrics,
		start:    time.Now(),
		interval: interval,
		stop:     make(chan struct{}),
	}, nil
}

// Start samples immediately and then on every tick. It blocks until Stop
// is called or the context is cancelled, so run it on its own goroutine.
func (rc *RuntimeCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(rc.interval)
	defer ticker.Stop()

	rc.metrics.Collect(ctx, rc.start)

	for {
		select {
		case <-ticker.C:
			rc.metrics.Collect(ctx, rc.start)
		case <-rc.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends collection. Safe to call more than once.
func (rc *RuntimeCollector) Stop() {
	rc.stopOnce.Do(func() { close(rc.stop) })
}

// GetCurrentStats samples the runtime on demand, recording the gauges as
// a side effect.
func (rc *RuntimeCollector) GetCurrentStats(ctx context.Context) *RuntimeStats {
	return rc.metrics.Collect(ctx, rc.start)
}
