// Package shared holds utilities used across packages that belong to no
// specific layer.
//
// The testutil subpackage provides a buffered slog handler so tests can
// assert on structured log output without touching global logger state.
package shared
