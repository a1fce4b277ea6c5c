// Package events contains the WebSocket message contracts for the
// WorkPulse dashboard. The hub marshals these types onto the wire and
// the page switches on MessageType to apply them.
package events

import (
	"time"

	"workpulse/pkg/contracts/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeConnected greets a client right after registration so the
	// page knows push is live.
	MessageTypeConnected MessageType = "connection"

	// MessageTypeMetricsRefresh carries a fresh dashboard snapshot after the
	// tracking workbook changed or a reload was forced.
	MessageTypeMetricsRefresh MessageType = "metrics:refresh"

	// MessageTypeWatcherStatus reports change-watcher state so the page can
	// warn when live refresh has degraded to cache-TTL polling.
	MessageTypeWatcherStatus MessageType = "watcher:status"

	// MessageTypeHeartbeat is the only message the page sends upstream.
	MessageTypeHeartbeat MessageType = "heartbeat"
)

// Refresh sources carried in MetricsRefreshData.Source.
const (
	RefreshSourceWatcher = "watcher"
	RefreshSourceManual  = "manual"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Message represents a complete WebSocket message
type Message struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// NewMessage builds a message of the given type around a payload,
// stamped with the current time.
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		BaseMessage: BaseMessage{
			Type:      msgType,
			Timestamp: time.Now(),
		},
		Data: data,
	}
}

// ConnectionData is the payload of MessageTypeConnected.
type ConnectionData struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}

// MetricsRefreshData is the payload of MessageTypeMetricsRefresh.
// Source says what triggered the refresh; the snapshot is complete, so
// clients can re-render without a follow-up fetch.
type MetricsRefreshData struct {
	Source   string           `json:"source"`
	Snapshot *domain.Snapshot `json:"snapshot"`
}

// WatcherStatusData is the payload of MessageTypeWatcherStatus.
type WatcherStatusData struct {
	Watching bool   `json:"watching"`
	Detail   string `json:"detail"`
}
