package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workpulse/internal/sheet"
	"workpulse/pkg/contracts/domain"
)

type fakeWatcher struct{ watching bool }

func (f *fakeWatcher) Watching() bool { return f.watching }

type fakeHub struct {
	running bool
	clients int
}

func (f *fakeHub) IsRunning() bool  { return f.running }
func (f *fakeHub) ClientCount() int { return f.clients }

type fakeCache struct {
	entry sheet.Entry
	ok    bool
	stats sheet.CacheStats
}

func (f *fakeCache) Peek() (sheet.Entry, bool) { return f.entry, f.ok }
func (f *fakeCache) Stats() sheet.CacheStats   { return f.stats }

// healthyFixture returns a service whose workbook exists and whose
// dependencies all report healthy.
func healthyFixture(t *testing.T) *HealthService {
	t.Helper()

	path := filepath.Join(t.TempDir(), "daily_metrics.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))

	cache := &fakeCache{
		entry: sheet.Entry{Table: domain.EmptyTable(), LoadedAt: time.Now()},
		ok:    true,
	}
	return NewHealthService("v1.2.0-test", path, cache, &fakeWatcher{watching: true},
		&fakeHub{running: true, clients: 2}, testLogger())
}

func TestHealthService_HealthCheck(t *testing.T) {
	hs := healthyFixture(t)
	status := hs.HealthCheck(context.Background())

	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "v1.2.0-test", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthService_ReadinessCheck_AllReady(t *testing.T) {
	hs := healthyFixture(t)
	status := hs.ReadinessCheck(context.Background())

	assert.Equal(t, "ready", status.Status)
	require.Contains(t, status.Services, "workbook")
	require.Contains(t, status.Services, "watcher")
	require.Contains(t, status.Services, "websocket")

	for name, svc := range status.Services {
		sh, ok := svc.(ServiceHealth)
		require.True(t, ok, "service %s has unexpected type", name)
		assert.Equal(t, "ready", sh.Status, "service %s", name)
	}
}

func TestHealthService_ReadinessCheck_MissingWorkbookDegrades(t *testing.T) {
	cache := &fakeCache{}
	hs := NewHealthService("v1", filepath.Join(t.TempDir(), "absent.xlsx"),
		cache, &fakeWatcher{watching: true}, &fakeHub{running: true}, testLogger())

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "degraded", status.Status)

	sh := status.Services["workbook"].(ServiceHealth)
	assert.Equal(t, "degraded", sh.Status)
	assert.Contains(t, sh.Message, "workbook not found")
}

func TestHealthService_ReadinessCheck_LastLoadFailureDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_metrics.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a real workbook"), 0o644))

	cache := &fakeCache{
		entry: sheet.Entry{
			Table:    domain.EmptyTable(),
			LoadErr:  errors.New("zip: not a valid zip file"),
			LoadedAt: time.Now(),
		},
		ok: true,
	}
	hs := NewHealthService("v1", path, cache, &fakeWatcher{watching: true},
		&fakeHub{running: true}, testLogger())

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "degraded", status.Status)

	sh := status.Services["workbook"].(ServiceHealth)
	assert.Contains(t, sh.Message, "last load failed")
}

func TestHealthService_ReadinessCheck_WatcherDownDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_metrics.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))

	hs := NewHealthService("v1", path, &fakeCache{}, &fakeWatcher{watching: false},
		&fakeHub{running: true}, testLogger())

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "degraded", status.Status)

	sh := status.Services["watcher"].(ServiceHealth)
	assert.Equal(t, "degraded", sh.Status)
	assert.Contains(t, sh.Message, "cache TTL")
}

func TestHealthService_ReadinessCheck_NilWatcherDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_metrics.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))

	hs := NewHealthService("v1", path, &fakeCache{}, nil, &fakeHub{running: true}, testLogger())

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "degraded", status.Status)
}

func TestHealthService_ReadinessCheck_HubDownNotReady(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily_metrics.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))

	hs := NewHealthService("v1", path, &fakeCache{}, &fakeWatcher{watching: false},
		&fakeHub{running: false}, testLogger())

	// not_ready outranks degraded.
	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)
}

func TestHealthService_LivenessCheck(t *testing.T) {
	hs := healthyFixture(t)
	status := hs.LivenessCheck(context.Background())

	assert.Equal(t, "alive", status.Status)
	require.Contains(t, status.Runtime, "uptime")
	require.Contains(t, status.Runtime, "go_version")
	assert.GreaterOrEqual(t, status.Runtime["uptime"].(float64), 0.0)
}

func TestHealthService_Version(t *testing.T) {
	hs := healthyFixture(t)
	info := hs.Version()

	assert.Equal(t, "v1.2.0-test", info["version"])
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "os")
	assert.Contains(t, info, "arch")
	assert.Contains(t, info, "uptime")
}
