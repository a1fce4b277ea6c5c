package domain

import (
	"time"
)

// Column headers the tracking workbook must contain. The loader matches
// these against the first row of the first sheet, exactly as written.
const (
	ColumnDate        = "Date"
	ColumnWorkMinutes = "Minutes of Total Video Work Done (min)"
	ColumnWords       = "Words Translated (nos.)"
	ColumnPaidMinutes = "Minutes of Video Localized (min) - Paid"
	ColumnClients     = "Total Number of Clients (nos.) - Platform Users"
)

// RequiredColumns lists every header the loader must resolve before a
// workbook is accepted. A workbook missing any of these fails to load.
var RequiredColumns = []string{
	ColumnDate,
	ColumnWorkMinutes,
	ColumnWords,
	ColumnPaidMinutes,
	ColumnClients,
}

// Row represents one day's entry from the tracking workbook.
// Cells preserves the raw values for the full table view; the typed
// fields are coerced once at load time and never re-parsed. A row whose
// date cell is missing or unparseable keeps DateValid false and is
// excluded from every date-filtered aggregate.
type Row struct {
	Cells       []string  `json:"cells"`
	Date        time.Time `json:"date"`
	DateValid   bool      `json:"date_valid"`
	WorkMinutes float64   `json:"work_minutes"`
	Words       int64     `json:"words"`
	PaidMinutes float64   `json:"paid_minutes"`
	Clients     int64     `json:"clients"`
}

// Table represents the in-memory image of the tracking sheet. It is
// immutable once loaded; the only mutation path is a full reload that
// swaps in a new table. Loading the same file twice yields equal tables.
type Table struct {
	SheetName string   `json:"sheet_name"`
	Headers   []string `json:"headers"`
	Rows      []Row    `json:"rows"`
}

// EmptyTable returns the table substituted when a load fails. Metrics
// computed over it are all zero, so the dashboard still renders.
func EmptyTable() *Table {
	return &Table{}
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// RawRows returns the raw cell grid for the table view, aligned with
// Headers.
func (t *Table) RawRows() [][]string {
	if t == nil {
		return nil
	}
	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r.Cells
	}
	return rows
}

// Direction indicates how today's aggregate compares to yesterday's.
type Direction string

const (
	// DirectionUp means today's sum strictly exceeds yesterday's.
	DirectionUp Direction = "up"
	// DirectionDown covers everything else, ties included.
	DirectionDown Direction = "down"
)

// DayComparison represents a day-over-day comparison of one column:
// both daily sums, the direction of change, and its absolute magnitude.
type DayComparison struct {
	Today     float64   `json:"today"`
	Yesterday float64   `json:"yesterday"`
	Direction Direction `json:"direction"`
	Delta     float64   `json:"delta"`
}

// Snapshot is the assembled dashboard view-model: the four tile values,
// the full table, and any load error reported inline. It is the payload
// of GET /api/dashboard and of WebSocket refresh pushes. LoadError is
// empty when the last load succeeded; metrics are zero-valued when it
// did not, so the page always has something to render.
type Snapshot struct {
	GeneratedAt      time.Time     `json:"generated_at"`
	AvgWorkMinutes   float64       `json:"avg_work_minutes"`
	TotalWords       int64         `json:"total_words"`
	TotalWordsLabel  string        `json:"total_words_label"`
	PaidMinutes      DayComparison `json:"paid_minutes"`
	ClientsToday     int64         `json:"clients_today"`
	ClientsYesterday int64         `json:"clients_yesterday"`
	RowCount         int           `json:"row_count"`
	Headers          []string      `json:"headers"`
	Rows             [][]string    `json:"rows"`
	LoadError        string        `json:"load_error,omitempty"`
	AutoRefresh      bool          `json:"auto_refresh"`
}
