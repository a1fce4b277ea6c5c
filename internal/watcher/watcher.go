package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"workpulse/internal/infrastructure"
)

// Callback runs on the watcher goroutine whenever the tracked workbook
// changes on disk. op is the lowercase filesystem operation ("create",
// "write", "rename").
type Callback func(ctx context.Context, op string)

// Watcher observes the directory containing the tracking workbook and
// fires its callback when the workbook itself is created, written, or
// renamed. Spreadsheet editors usually save by writing a temp file and
// renaming it over the original, so the watch must sit on the parent
// directory rather than the file.
type Watcher struct {
	path     string
	base     string
	fsw      *fsnotify.Watcher
	callback Callback
	logger   *slog.Logger
	metrics  *infrastructure.DashboardMetrics

	mu       sync.Mutex
	started  bool
	closed   bool
	watching atomic.Bool
	done     chan struct{}
}

// New creates a watcher for the workbook at path. The parent directory
// must exist; the workbook itself may appear later.
func New(path string, callback Callback, metrics *infrastructure.DashboardMetrics, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve workbook path: %w", err)
	}

	dir := filepath.Dir(abs)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory %s: not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		path:     abs,
		base:     filepath.Base(abs),
		fsw:      fsw,
		callback: callback,
		logger:   logger.With(slog.String("component", "sheet_watcher")),
		metrics:  metrics,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop on its own goroutine until Close is called or
// ctx is cancelled. Further calls are no-ops.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started || w.closed {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching workbook",
		slog.String("path", w.path),
		slog.String("dir", filepath.Dir(w.path)))

	w.watching.Store(true)
	go w.run(ctx)
}

// Watching reports whether the event loop is live.
func (w *Watcher) Watching() bool {
	return w.watching.Load()
}

// Path returns the absolute workbook path under watch.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops the event loop and releases the filesystem handle. It is
// idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	started := w.started
	w.mu.Unlock()

	// Closing the fsnotify watcher closes its channels, which unblocks
	// the event loop.
	err := w.fsw.Close()
	if started {
		<-w.done
	}
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer func() {
		w.watching.Store(false)
		close(w.done)
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher stopping", slog.String("reason", "context cancelled"))
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent filters directory noise down to changes of the workbook
// itself and dispatches the callback.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if filepath.Base(event.Name) != w.base {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	op := opLabel(event.Op)
	w.logger.Info("workbook changed",
		slog.String("file", event.Name),
		slog.String("op", op))
	infrastructure.RecordWatcherEvent(ctx, w.metrics, op)

	if w.callback != nil {
		w.callback(ctx, op)
	}
}

func opLabel(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return strings.ToLower(op.String())
	}
}
