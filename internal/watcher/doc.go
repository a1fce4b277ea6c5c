// Package watcher reacts to on-disk changes of the tracking workbook.
// It wraps fsnotify with the lifecycle the rest of the application
// expects: construct, Start with a context, Close once. Auto-refresh
// degrades gracefully when the watcher cannot start; the dashboard then
// relies on the cache TTL alone.
package watcher
