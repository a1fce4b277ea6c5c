package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"workpulse/internal/infrastructure"
	"workpulse/pkg/contracts/domain"
	"workpulse/pkg/contracts/events"
)

// Message types understood by the dashboard page, re-exported from the
// wire contracts for broadcast call sites and metric labels.
const (
	TypeConnection = string(events.MessageTypeConnected)
	TypeSnapshot   = string(events.MessageTypeMetricsRefresh)
	TypeWatcher    = string(events.MessageTypeWatcherStatus)
)

// Hub owns the set of connected dashboard pages. A single run goroutine
// serializes registration, unregistration, and broadcast delivery; mu
// covers the client map and counters for readers on other goroutines.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	done    chan struct{}

	totalConnections int64
	messagesSent     int64

	logger *slog.Logger
}

// NewHub wires a hub around logger. Passing nil picks up the process-wide
// logger.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Start launches the run loop and the periodic metrics reporter. Starting
// a running hub is a no-op.
func (h *Hub) Start() {
	if !h.setRunning(true) {
		return
	}

	go h.run()
	go h.reportMetrics()
}

// Stop shuts the hub down and closes every client's send channel. Stopping
// a stopped hub is a no-op.
func (h *Hub) Stop() {
	if !h.setRunning(false) {
		return
	}

	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// setRunning flips the running flag and reports whether it changed.
func (h *Hub) setRunning(to bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running == to {
		return false
	}
	h.running = to
	return true
}

// IsRunning reports whether the hub loop is accepting clients.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Register hands a client to the run loop.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastSnapshot pushes a refreshed dashboard snapshot to every client.
// Source says what triggered the refresh (events.RefreshSourceWatcher or
// events.RefreshSourceManual).
func (h *Hub) BroadcastSnapshot(snap *domain.Snapshot, source string) {
	h.BroadcastSnapshotWithTrace(snap, source, "")
}

// BroadcastSnapshotWithTrace pushes a refreshed snapshot, tagging it with
// the trace ID of the reload that produced it.
func (h *Hub) BroadcastSnapshotWithTrace(snap *domain.Snapshot, source, traceID string) {
	message := events.NewMessage(events.MessageTypeMetricsRefresh, events.MetricsRefreshData{
		Source:   source,
		Snapshot: snap,
	})
	message.TraceID = traceID

	h.broadcastMessage(message)
}

// BroadcastWatcherStatus tells connected pages whether live refresh is on.
func (h *Hub) BroadcastWatcherStatus(watching bool, detail string) {
	h.broadcastMessage(events.NewMessage(events.MessageTypeWatcherStatus, events.WatcherStatusData{
		Watching: watching,
		Detail:   detail,
	}))
}

// broadcastMessage marshals and queues a message for the run loop.
// Messages sent while the hub is stopped are dropped, not queued.
func (h *Hub) broadcastMessage(message events.Message) {
	if !h.IsRunning() {
		h.logger.Warn("broadcast dropped, hub not running",
			slog.String("message_type", string(message.Type)))
		return
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", string(message.Type)))
		return
	}

	select {
	case h.broadcast <- jsonData:
	case <-h.done:
		// Stopped between the running check and the send.
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.logger.Info("hub shutting down")
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++
	h.mu.Unlock()

	ctx := context.Background()
	if client.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, client.traceID)
	}

	h.logger.InfoContext(ctx, "client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	Stats().PageJoined()
	if m := GetOTelMetrics(); m != nil {
		m.RecordConnection(ctx)
		m.RecordClientCount(ctx, int64(count))
	}

	h.greet(ctx, client)
}

// greet tells the new page that push is live.
func (h *Hub) greet(ctx context.Context, client *Client) {
	msg := events.NewMessage(events.MessageTypeConnected, events.ConnectionData{
		Status:   "connected",
		Message:  "Connected to WorkPulse dashboard",
		ClientID: client.id,
	})
	msg.TraceID = client.traceID

	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case client.send <- raw:
	default:
		h.logger.WarnContext(ctx, "connection message dropped, client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := context.Background()
	if client.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, client.traceID)
	}
	alive := time.Since(client.connectedAt)

	h.logger.InfoContext(ctx, "client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", alive))

	Stats().PageLeft(alive)
	if m := GetOTelMetrics(); m != nil {
		m.RecordDisconnection(ctx, alive, "normal")
		m.RecordClientCount(ctx, int64(count))
	}
}

// fanOut delivers one marshaled message to every client. Sends happen
// without the lock held; a client whose buffer is full is evicted so one
// stalled page cannot block the rest.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent, dropped := 0, 0
	for _, client := range clients {
		select {
		case client.send <- message:
			sent++
		default:
			dropped++
			h.evict(client)
		}
	}

	h.mu.Lock()
	h.messagesSent += int64(sent)
	count := len(h.clients)
	h.mu.Unlock()

	if dropped > 0 {
		h.logger.Warn("some clients missed a broadcast",
			slog.Int("success_count", sent),
			slog.Int("fail_count", dropped))
	}

	if m := GetOTelMetrics(); m != nil {
		m.RecordBroadcast(context.Background())
		m.RecordClientCount(context.Background(), int64(count))
	}
}

// evict drops a client that stopped reading. Evicted clients skip the
// unregister path, so their session accounting ends here.
func (h *Hub) evict(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	close(client.send)
	delete(h.clients, client)
	h.mu.Unlock()

	alive := time.Since(client.connectedAt)
	Stats().PageDropped()
	Stats().PageLeft(alive)
	if m := GetOTelMetrics(); m != nil {
		m.RecordDroppedMessage(context.Background(), "slow_consumer")
		m.RecordDisconnection(context.Background(), alive, "slow_consumer")
	}

	h.logger.Warn("client send buffer full, disconnecting",
		slog.String("client_id", client.id))
}

// reportMetrics logs hub health every 30 seconds until the hub stops.
func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return

		case <-ticker.C:
			h.mu.RLock()
			activeClients := len(h.clients)
			totalConnections := h.totalConnections
			messagesSent := h.messagesSent
			h.mu.RUnlock()

			queueDepth := int64(len(h.broadcast))
			Stats().ObserveQueueDepth(queueDepth)
			if m := GetOTelMetrics(); m != nil {
				m.RecordQueueDepth(context.Background(), queueDepth)
			}

			h.logger.Info("websocket hub metrics",
				slog.Int("active_clients", activeClients),
				slog.Int64("total_connections", totalConnections),
				slog.Int64("messages_sent", messagesSent),
				slog.Int64("broadcast_queue", queueDepth),
			)
		}
	}
}

// GetHubMetrics returns current hub counters plus the push delivery stats.
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	m := map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
	}
	h.mu.RUnlock()

	// The push stats keep their own lock.
	m["push"] = Stats().Snapshot()
	return m
}
