// Package sheet loads the tracking workbook into memory and caches the
// result.
//
// The Loader turns the configured Excel file into a domain.Table: the
// first row of the selected sheet is the header row, the five required
// columns are matched by exact name, and numeric and date cells are
// coerced once at load time. A failed load yields an empty table plus an
// error so the dashboard always has something to render.
//
// The Cache holds the last load in a single atomically swapped slot with
// a TTL. Reads within the TTL return the cached table; an expired or
// invalidated slot reloads on the next read, with concurrent readers
// collapsed into one disk read. The filesystem watcher invalidates the
// slot the moment the workbook changes.
package sheet
