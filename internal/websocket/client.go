package websocket

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"workpulse/internal/infrastructure"
	"workpulse/pkg/contracts/events"
)

// Timing for the gorilla connection. The browser answers pings
// automatically, so a missed pong means the tab is gone.
const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long the read side tolerates silence from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must stay below pongWait so a healthy peer always has a
	// pong in flight before the deadline hits.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames. The page only ever sends
	// heartbeats, so anything bigger is suspect.
	maxMessageSize = 512
)

// heartbeatMessage is the keepalive the dashboard page sends.
var heartbeatMessage = []byte(`{"type":"` + string(events.MessageTypeHeartbeat) + `"}`)

// Client ties one browser tab's websocket connection to the hub. The hub
// owns the send channel and closes it to end the connection; the two pumps
// own the connection itself.
type Client struct {
	hub  *Hub
	conn Conn

	// send carries marshaled frames from the hub to the write pump.
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger

	messagesSent     int64
	messagesReceived int64
	bytesSent        int64
	bytesReceived    int64
}

// NewClient wraps a gorilla connection in a Client.
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return NewClientWithConnection(hub, gorillaConn{conn}, logger)
}

// NewClientWithConnection builds a Client on any Conn implementation.
// Tests use it to substitute a scripted connection.
func NewClientWithConnection(hub *Hub, conn Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	id := uuid.New().String()

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		id:          id,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
		),
	}
}

// NewClientWithTrace builds a Client tagged with the trace ID of the
// request that upgraded the connection.
func NewClientWithTrace(hub *Hub, conn *websocket.Conn, traceID string, logger *slog.Logger) *Client {
	client := NewClient(hub, conn, logger)
	client.traceID = traceID
	client.logger = client.logger.With(slog.String("trace_id", traceID))
	return client
}

// ctx returns a background context carrying the client's trace ID.
func (c *Client) ctx() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ReadPump consumes inbound frames until the connection dies, then
// unregisters the client. It must run in its own goroutine; the read
// deadline is the only thing that detects a vanished peer.
func (c *Client) ReadPump() {
	ctx := c.ctx()

	defer func() {
		c.logger.InfoContext(ctx, "websocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int64("messages_received", c.messagesReceived),
			slog.Int64("bytes_received", c.bytesReceived))
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(ctx, "unexpected websocket close",
					slog.String("error", err.Error()))
			}
			return
		}

		message = bytes.TrimSpace(message)
		c.messagesReceived++
		c.bytesReceived += int64(len(message))
		Stats().FrameReceived(int64(len(message)))
		if m := GetOTelMetrics(); m != nil {
			m.RecordMessageReceived(ctx, int64(len(message)))
		}

		// Heartbeats need no reply; the pong handler already pushed the
		// read deadline out. The page sends nothing else.
		if bytes.Equal(message, heartbeatMessage) {
			c.logger.Debug("heartbeat received")
		}
	}
}

// WritePump moves frames from the send channel to the connection and keeps
// the peer alive with pings. It must run in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()

		c.logger.InfoContext(c.ctx(), "websocket write pump stopped",
			slog.Int64("messages_sent", c.messagesSent),
			slog.Int64("bytes_sent", c.bytesSent))
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel; say goodbye to the page.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeMessage(message); err != nil {
				return
			}
			if err := c.drainQueued(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.ctx(), "ping failed",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

// drainQueued flushes frames already buffered on the send channel, each as
// its own text frame.
func (c *Client) drainQueued() error {
	for n := len(c.send); n > 0; n-- {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.writeMessage(msg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

// writeMessage sends one text frame and records the outcome.
func (c *Client) writeMessage(message []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.ErrorContext(c.ctx(), "error writing to websocket",
			slog.String("error", err.Error()))
		Stats().PushFailed()
		if m := GetOTelMetrics(); m != nil {
			m.RecordMessageError(c.ctx(), "write")
		}
		return err
	}

	c.messagesSent++
	c.bytesSent += int64(len(message))
	Stats().PushDelivered(int64(len(message)))

	if m := GetOTelMetrics(); m != nil {
		m.RecordMessageSent(c.ctx(), int64(len(message)))
	}
	return nil
}

// ServeWS registers an upgraded connection with the hub and starts its
// pumps.
func ServeWS(hub *Hub, conn *websocket.Conn) {
	ServeWSWithTrace(hub, conn, "")
}

// ServeWSWithTrace is ServeWS with the upgrading request's trace ID
// propagated into the client's log lines.
func ServeWSWithTrace(hub *Hub, conn *websocket.Conn, traceID string) {
	var client *Client
	if traceID != "" {
		client = NewClientWithTrace(hub, conn, traceID, nil)
	} else {
		client = NewClient(hub, conn, nil)
	}
	client.hub.register <- client

	// Both pumps run in fresh goroutines so the upgrade handler returns.
	go client.WritePump()
	go client.ReadPump()
}
