package infrastructure

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workpulse/internal/config"
)

// initFileLogger points the global logger at a temp file and returns a
// reader for the lines written so far.
func initFileLogger(t *testing.T, cfg config.LoggingConfig) func() []map[string]any {
	t.Helper()

	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	_, err := InitializeLogger(cfg)
	require.NoError(t, err)

	return func() []map[string]any {
		require.NoError(t, CloseLogFile())

		content, err := os.ReadFile(cfg.FilePath)
		require.NoError(t, err)

		var entries []map[string]any
		for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
			if line == "" {
				continue
			}
			var entry map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &entry))
			entries = append(entries, entry)
		}
		return entries
	}
}

func TestInitializeLogger_WritesJSON(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	readEntries := initFileLogger(t, config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})

	GetLogger().Info("workbook loaded", slog.Int("rows", 31))

	entries := readEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "workbook loaded", entries[0]["msg"])
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, float64(31), entries[0]["rows"])
}

func TestInitializeLogger_OnlyFirstCallWins(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	initFileLogger(t, config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})

	first := GetLogger()
	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "stdout"})
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestLogger_TraceIDInjection(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	readEntries := initFileLogger(t, config.LoggingConfig{
		Level:    "debug",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})

	ctx := WithTraceID(context.Background(), "trace-abc-123")
	GetLogger().InfoContext(ctx, "reload requested")

	// Derived loggers must keep the trace injection.
	GetLogger().With(slog.String("component", "cache")).InfoContext(ctx, "entry refreshed")

	entries := readEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "trace-abc-123", entries[0]["trace_id"])
	assert.Equal(t, "trace-abc-123", entries[1]["trace_id"])
	assert.Equal(t, "cache", entries[1]["component"])
}

func TestLogger_NoTraceIDWithoutContextValue(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	readEntries := initFileLogger(t, config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})

	GetLogger().InfoContext(context.Background(), "plain line")

	entries := readEntries()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0], "trace_id")
}

func TestLogger_LevelThreshold(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	readEntries := initFileLogger(t, config.LoggingConfig{
		Level:    "warn",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})

	logger := GetLogger()
	logger.Debug("dropped debug")
	logger.Info("dropped info")
	logger.Warn("kept warn")
	logger.Error("kept error")

	entries := readEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestLogger_TextFormat(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")

	ResetLoggerForTesting()
	t.Cleanup(ResetLoggerForTesting)

	_, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Format:   "text",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)

	GetLogger().Info("plain message")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `msg="plain message"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestEnsureTraceID(t *testing.T) {
	withID := WithTraceID(context.Background(), "keep-me")
	assert.Equal(t, "keep-me", GetTraceID(EnsureTraceID(withID)))

	generated := GetTraceID(EnsureTraceID(context.Background()))
	assert.NotEmpty(t, generated)

	assert.Empty(t, GetTraceID(context.Background()))
}

func TestLoggerWithContext(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "app.log")
	readEntries := initFileLogger(t, config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})

	ctx := WithTraceID(context.Background(), "bound-trace")
	LoggerWithContext(ctx).Info("via bound logger")

	entries := readEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "bound-trace", entries[0]["trace_id"])
}
