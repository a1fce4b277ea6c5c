package websocket

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workpulse/pkg/contracts/domain"
	"workpulse/pkg/contracts/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// newTestClient builds a bare client wired to the hub, bypassing the
// upgrade path. bufferSize controls how many pushes it can absorb.
func newTestClient(hub *Hub, bufferSize int) *Client {
	return &Client{
		id:          "test-client",
		hub:         hub,
		send:        make(chan []byte, bufferSize),
		remoteAddr:  "127.0.0.1:9999",
		connectedAt: time.Now(),
		logger:      testLogger(),
	}
}

// receiveMessage waits for one message on the client's send channel.
func receiveMessage(t *testing.T, client *Client) map[string]interface{} {
	t.Helper()

	select {
	case raw := <-client.send:
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHub_StartStop(t *testing.T) {
	hub := NewHub(testLogger())

	assert.False(t, hub.IsRunning())

	hub.Start()
	assert.True(t, hub.IsRunning())

	// Start is idempotent
	hub.Start()
	assert.True(t, hub.IsRunning())

	hub.Stop()
	assert.False(t, hub.IsRunning())

	// Stop is idempotent
	hub.Stop()
	assert.False(t, hub.IsRunning())
}

func TestHub_RegisterSendsWelcome(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)

	msg := receiveMessage(t, client)
	assert.Equal(t, TypeConnection, msg["type"])

	data, ok := msg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, client.id, data["client_id"])

	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_BroadcastSnapshot(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	receiveMessage(t, client) // drain the welcome message

	hub.BroadcastSnapshot(&domain.Snapshot{
		RowCount:        3,
		TotalWords:      150230,
		TotalWordsLabel: "150,230",
	}, events.RefreshSourceWatcher)

	msg := receiveMessage(t, client)
	assert.Equal(t, TypeSnapshot, msg["type"])
	assert.Contains(t, msg, "timestamp")

	data, ok := msg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, events.RefreshSourceWatcher, data["source"])

	snap, ok := data["snapshot"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), snap["row_count"])
	assert.Equal(t, "150,230", snap["total_words_label"])
}

func TestHub_BroadcastSnapshotWithTrace(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	receiveMessage(t, client)

	hub.BroadcastSnapshotWithTrace(&domain.Snapshot{RowCount: 1}, events.RefreshSourceManual, "trace-abc")

	msg := receiveMessage(t, client)
	assert.Equal(t, TypeSnapshot, msg["type"])
	assert.Equal(t, "trace-abc", msg["trace_id"])

	data, ok := msg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, events.RefreshSourceManual, data["source"])
}

func TestHub_BroadcastWatcherStatus(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	receiveMessage(t, client)

	hub.BroadcastWatcherStatus(false, "watcher stopped; refresh limited to cache TTL")

	msg := receiveMessage(t, client)
	assert.Equal(t, TypeWatcher, msg["type"])

	data, ok := msg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, data["watching"])
	assert.Contains(t, data["detail"], "cache TTL")
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = newTestClient(hub, 256)
		hub.Register(clients[i])
		receiveMessage(t, clients[i])
	}
	assert.Equal(t, 3, hub.ClientCount())

	hub.BroadcastSnapshot(&domain.Snapshot{RowCount: 7}, events.RefreshSourceWatcher)

	for _, client := range clients {
		msg := receiveMessage(t, client)
		assert.Equal(t, TypeSnapshot, msg["type"])
	}
}

func TestHub_SlowClientDisconnected(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	// A zero-capacity buffer with no reader models a stalled page. The
	// welcome message is dropped and the first broadcast evicts it.
	slow := newTestClient(hub, 0)
	hub.Register(slow)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastSnapshot(&domain.Snapshot{RowCount: 1}, events.RefreshSourceWatcher)

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWhenStoppedDrops(t *testing.T) {
	hub := NewHub(testLogger())

	// Never started: broadcast must not block.
	done := make(chan struct{})
	go func() {
		hub.BroadcastSnapshot(&domain.Snapshot{RowCount: 1}, events.RefreshSourceWatcher)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a stopped hub")
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	receiveMessage(t, client)

	hub.unregister <- client

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)

	// The hub closed the channel; a receive drains instantly.
	select {
	case _, ok := <-client.send:
		assert.False(t, ok, "send channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestHub_GetHubMetrics(t *testing.T) {
	hub := NewHub(testLogger())
	hub.Start()
	defer hub.Stop()

	client := newTestClient(hub, 256)
	hub.Register(client)
	receiveMessage(t, client)

	hub.BroadcastSnapshot(&domain.Snapshot{RowCount: 1}, events.RefreshSourceWatcher)
	receiveMessage(t, client)

	metrics := hub.GetHubMetrics()
	assert.Equal(t, 1, metrics["active_clients"])
	assert.Equal(t, int64(1), metrics["total_connections"])
	assert.GreaterOrEqual(t, metrics["messages_sent"].(int64), int64(1))
}
