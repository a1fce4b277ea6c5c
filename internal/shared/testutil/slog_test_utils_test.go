package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler_CapturesRecords(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Info("cache warmed", slog.String("sheet", "Input"))
	logger.Error("reload failed", slog.Int("attempt", 2))

	records := handler.GetRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "cache warmed", records[0].Message)
	assert.Equal(t, slog.LevelInfo, records[0].Level)
	assert.Equal(t, "Input", records[0].Attrs["sheet"])

	assert.True(t, handler.ContainsMessage("reload failed"))
	assert.False(t, handler.ContainsMessage("never logged"))
	assert.True(t, handler.ContainsAttr("attempt", int64(2)))
}

func TestBufferedSlogHandler_FiltersByLevel(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Info("second info line")
	logger.Warn("warn line")
	logger.Error("error line")

	assert.Len(t, handler.GetRecordsByLevel(slog.LevelDebug), 1)
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 2)
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelWarn), 1)
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
}

func TestBufferedSlogHandler_WithAttrsCaptured(t *testing.T) {
	logger, handler := NewTestLogger(t)

	// Attributes bound with With must show up on derived-logger records.
	bound := logger.With(slog.String("component", "watcher"))
	bound.Info("debounce fired", slog.String("path", "data.xlsx"))

	records := handler.GetRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "watcher", records[0].Attrs["component"])
	assert.Equal(t, "data.xlsx", records[0].Attrs["path"])
}

func TestBufferedSlogHandler_WithGroupFlattensKeys(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.WithGroup("cache").Info("entry refreshed", slog.Int("rows", 42))

	records := handler.GetRecords()
	require.Len(t, records, 1)
	assert.Equal(t, int64(42), records[0].Attrs["cache.rows"])
}

func TestBufferedSlogHandler_DerivedHandlersShareBuffer(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Info("from root")
	logger.With(slog.String("component", "hub")).Info("from derived")

	assert.Equal(t, 2, handler.Count())
	assert.True(t, handler.ContainsMessage("from derived"))
}

func TestBufferedSlogHandler_Clear(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Info("one")
	logger.Info("two")
	require.Equal(t, 2, handler.Count())

	handler.Clear()
	assert.Equal(t, 0, handler.Count())
	assert.Empty(t, handler.GetRecords())
}

func TestBufferedSlogHandler_AssertionHelpers(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Info("workbook loaded", slog.String("sheet", "Input"))
	logger.Warn("watcher restarted", slog.Int("retry", 3))

	AssertLogContains(t, handler, slog.LevelInfo, "workbook loaded")
	AssertLogAttr(t, handler, "sheet", "Input")
	AssertNoErrors(t, handler)

	logger.Error("disk gone")
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
}

func TestBufferedSlogHandler_ConcurrentLogging(t *testing.T) {
	logger, handler := NewTestLogger(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("concurrent line", slog.Int("worker", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, handler.Count())
}
