package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workpulse/internal/services"
	"workpulse/internal/sheet"
)

type stubCache struct {
	entry sheet.Entry
	ok    bool
}

func (s *stubCache) Peek() (sheet.Entry, bool) { return s.entry, s.ok }
func (s *stubCache) Stats() sheet.CacheStats   { return sheet.CacheStats{} }

type stubWatcher struct{ watching bool }

func (s *stubWatcher) Watching() bool { return s.watching }

type stubHub struct {
	running bool
	clients int
}

func (s *stubHub) IsRunning() bool  { return s.running }
func (s *stubHub) ClientCount() int { return s.clients }

// newHealthHandlerWith builds a handler over stubbed dependencies with the
// given watcher and hub states; the workbook file always exists.
func newHealthHandlerWith(t *testing.T, watching, hubRunning bool) *HealthHandler {
	t.Helper()

	workbookPath := filepath.Join(t.TempDir(), "metrics.xlsx")
	require.NoError(t, os.WriteFile(workbookPath, []byte("stub"), 0o644))

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	service := services.NewHealthService(
		"v1.0.0-test",
		workbookPath,
		&stubCache{},
		&stubWatcher{watching: watching},
		&stubHub{running: hubRunning, clients: 1},
		logger,
	)
	return NewHealthHandler(service, logger)
}

func newTestHealthHandler(t *testing.T) *HealthHandler {
	t.Helper()
	return newHealthHandlerWith(t, true, true)
}

// getJSON invokes an endpoint handler directly and decodes its JSON body.
func getJSON(t *testing.T, h http.HandlerFunc, target string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	handler := newTestHealthHandler(t)

	code, body := getJSON(t, handler.HealthCheck, "/api/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "timestamp")
	assert.Equal(t, "v1.0.0-test", body["version"])
}

func TestHealthHandler_ReadinessCheck(t *testing.T) {
	handler := newTestHealthHandler(t)

	code, body := getJSON(t, handler.ReadinessCheck, "/api/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])

	checks, ok := body["services"].(map[string]interface{})
	require.True(t, ok, "services should be a map")
	assert.Contains(t, checks, "workbook")
	assert.Contains(t, checks, "watcher")
	assert.Contains(t, checks, "websocket")
}

func TestHealthHandler_LivenessCheck(t *testing.T) {
	handler := newTestHealthHandler(t)

	code, body := getJSON(t, handler.LivenessCheck, "/api/health/live")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alive", body["status"])
	assert.Contains(t, body, "runtime")
}

func TestHealthHandler_Version(t *testing.T) {
	handler := newTestHealthHandler(t)

	code, body := getJSON(t, handler.Version, "/api/version")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "v1.0.0-test", body["version"])
	assert.Contains(t, body, "go_version")
	assert.Contains(t, body, "os")
	assert.Contains(t, body, "arch")
}

func TestHealthHandler_ReadinessDegradesWithoutWatcher(t *testing.T) {
	handler := newHealthHandlerWith(t, false, true)

	code, body := getJSON(t, handler.ReadinessCheck, "/api/health/ready")

	// Degraded is still 200: the dashboard keeps serving from cache.
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])
}

func TestHealthHandler_ReadinessNotReadyReturns503(t *testing.T) {
	// A stopped hub means pushes are gone, not just stale data.
	handler := newHealthHandlerWith(t, true, false)

	code, body := getJSON(t, handler.ReadinessCheck, "/api/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not_ready", body["status"])
}

func TestHealthHandler_Routes(t *testing.T) {
	handler := newTestHealthHandler(t)
	router := handler.Routes()

	for path, wantStatus := range map[string]string{
		"/":      "ok",
		"/ready": "ready",
		"/live":  "alive",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "path %s", path)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, wantStatus, body["status"], "path %s", path)
	}
}

func TestHealthHandler_UptimeAdvances(t *testing.T) {
	handler := newTestHealthHandler(t)

	time.Sleep(100 * time.Millisecond)

	_, body := getJSON(t, handler.LivenessCheck, "/api/health/live")
	rt, ok := body["runtime"].(map[string]interface{})
	require.True(t, ok, "runtime should be a map")
	uptime, ok := rt["uptime"].(float64)
	require.True(t, ok, "uptime should be a number")
	assert.Greater(t, uptime, 0.0)

	_, body = getJSON(t, handler.Version, "/api/version")
	uptime, ok = body["uptime"].(float64)
	require.True(t, ok, "uptime should be a number")
	assert.Greater(t, uptime, 0.0)
}
