package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "workpulse.websocket"

// OTelMetrics instruments the push pipeline for scraping. Attribute
// values stay low-cardinality: directions, reasons, and stages, never
// client IDs.
type OTelMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	connectionErrors   metric.Int64Counter

	messagesTotal metric.Int64Counter
	messageBytes  metric.Int64Counter
	messageErrors metric.Int64Counter

	droppedMessages metric.Int64Counter
	broadcastsTotal metric.Int64Counter

	queueDepth  metric.Int64Gauge
	clientCount metric.Int64Gauge
}

// NewOTelMetrics creates the WebSocket instrument set on the global
// meter provider.
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(meterName)

	var (
		m   OTelMetrics
		err error
	)

	if m.connectionsTotal, err = meter.Int64Counter("websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections")); err != nil {
		return nil, err
	}
	if m.connectionsActive, err = meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections")); err != nil {
		return nil, err
	}
	if m.connectionDuration, err = meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.connectionErrors, err = meter.Int64Counter("websocket_connection_errors_total",
		metric.WithDescription("Total number of WebSocket connection errors")); err != nil {
		return nil, err
	}
	if m.messagesTotal, err = meter.Int64Counter("websocket_messages_total",
		metric.WithDescription("Total number of WebSocket messages")); err != nil {
		return nil, err
	}
	if m.messageBytes, err = meter.Int64Counter("websocket_message_bytes_total",
		metric.WithDescription("Total bytes of WebSocket messages"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.messageErrors, err = meter.Int64Counter("websocket_message_errors_total",
		metric.WithDescription("Total number of WebSocket message errors")); err != nil {
		return nil, err
	}
	if m.droppedMessages, err = meter.Int64Counter("websocket_dropped_messages_total",
		metric.WithDescription("Total number of dropped WebSocket messages")); err != nil {
		return nil, err
	}
	if m.broadcastsTotal, err = meter.Int64Counter("websocket_broadcasts_total",
		metric.WithDescription("Total number of hub broadcast operations")); err != nil {
		return nil, err
	}
	if m.queueDepth, err = meter.Int64Gauge("websocket_queue_depth",
		metric.WithDescription("Depth of the hub broadcast queue")); err != nil {
		return nil, err
	}
	if m.clientCount, err = meter.Int64Gauge("websocket_client_count",
		metric.WithDescription("Number of connected WebSocket clients")); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordConnection records a page connecting.
func (m *OTelMetrics) RecordConnection(ctx context.Context) {
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

// RecordDisconnection records a page disconnecting. Reason is "normal"
// for clean closes and "slow_consumer" for evictions.
func (m *OTelMetrics) RecordDisconnection(ctx context.Context, duration time.Duration, reason string) {
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordConnectionError records a connection that never got established.
func (m *OTelMetrics) RecordConnectionError(ctx context.Context, errorType string) {
	m.connectionErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("error_type", errorType)))
}

// RecordMessageSent records one frame written to a page.
func (m *OTelMetrics) RecordMessageSent(ctx context.Context, size int64) {
	attrs := metric.WithAttributes(attribute.String("direction", "outbound"))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, size, attrs)
}

// RecordMessageReceived records one frame read from a page.
func (m *OTelMetrics) RecordMessageReceived(ctx context.Context, size int64) {
	attrs := metric.WithAttributes(attribute.String("direction", "inbound"))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, size, attrs)
}

// RecordMessageError records a frame that failed at the given stage.
func (m *OTelMetrics) RecordMessageError(ctx context.Context, stage string) {
	m.messageErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordDroppedMessage records a frame discarded instead of delivered.
func (m *OTelMetrics) RecordDroppedMessage(ctx context.Context, reason string) {
	m.droppedMessages.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordBroadcast records one hub fanout pass.
func (m *OTelMetrics) RecordBroadcast(ctx context.Context) {
	m.broadcastsTotal.Add(ctx, 1)
}

// RecordQueueDepth records the broadcast queue depth.
func (m *OTelMetrics) RecordQueueDepth(ctx context.Context, depth int64) {
	m.queueDepth.Record(ctx, depth)
}

// RecordClientCount records the number of connected pages.
func (m *OTelMetrics) RecordClientCount(ctx context.Context, count int64) {
	m.clientCount.Record(ctx, count)
}

var globalOTelMetrics *OTelMetrics

// InitOTelMetrics initializes the package-level instrument set. It must
// run after the meter provider is installed; instruments created before
// that would bind to the no-op provider.
func InitOTelMetrics() error {
	metrics, err := NewOTelMetrics()
	if err != nil {
		return err
	}
	globalOTelMetrics = metrics
	return nil
}

// GetOTelMetrics returns the package-level instrument set, nil before
// InitOTelMetrics.
func GetOTelMetrics() *OTelMetrics {
	return globalOTelMetrics
}
