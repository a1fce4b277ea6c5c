package sheet

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "workpulse/internal/errors"
	"workpulse/pkg/contracts/domain"
)

// dateLayouts are tried in order when coercing the Date column. excelize
// returns formatted cell text, so both ISO dates and the spreadsheet's own
// display formats show up in practice.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/2006",
	"1/2/06",
	"2-Jan-06",
}

// Loader reads the tracking workbook from disk and converts it into a
// domain.Table. It holds no state between calls; every Load re-reads the
// file, so loading the same file twice yields equal tables.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a workbook loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger: logger.With(slog.String("component", "sheet_loader")),
	}
}

// Load opens the workbook at path and returns its metrics table. The sheet
// named by sheetName is read; when empty, the first sheet in the workbook
// is used. On any failure the returned table is domain.EmptyTable() and the
// error describes what went wrong, so callers can keep rendering while
// reporting the problem inline.
func (l *Loader) Load(path, sheetName string) (*domain.Table, error) {
	start := time.Now()

	f, err := excelize.OpenFile(path)
	if err != nil {
		l.logger.Warn("failed to open workbook",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return domain.EmptyTable(), apperrors.NewStorageError(
			fmt.Sprintf("open workbook %s", path), err)
	}
	defer f.Close()

	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return domain.EmptyTable(), apperrors.NewParsingError(
				"workbook contains no sheets", nil)
		}
		sheetName = sheets[0]
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return domain.EmptyTable(), apperrors.NewParsingError(
			fmt.Sprintf("read sheet %q", sheetName), err)
	}
	if len(rows) == 0 {
		return domain.EmptyTable(), apperrors.NewParsingError(
			fmt.Sprintf("sheet %q is empty", sheetName), nil)
	}

	// The first row is the header row; required columns are matched by
	// exact name so a renamed column fails loudly instead of silently
	// summing the wrong thing.
	header := rows[0]
	columnMap := make(map[string]int, len(header))
	for j, name := range header {
		columnMap[strings.TrimSpace(name)] = j
	}
	for _, col := range domain.RequiredColumns {
		if _, ok := columnMap[col]; !ok {
			return domain.EmptyTable(), apperrors.NewParsingError(
				fmt.Sprintf("missing required column %q in sheet %q", col, sheetName), nil)
		}
	}

	headers := make([]string, len(header))
	for j, name := range header {
		headers[j] = strings.TrimSpace(name)
	}

	table := &domain.Table{
		SheetName: sheetName,
		Headers:   headers,
		Rows:      make([]domain.Row, 0, len(rows)-1),
	}

	for i := 1; i < len(rows); i++ {
		raw := rows[i]
		if isBlankRow(raw) {
			continue
		}

		cell := func(col string) string {
			idx := columnMap[col]
			if idx < len(raw) {
				return strings.TrimSpace(raw[idx])
			}
			return ""
		}

		// Cells keeps the display values aligned with Headers; GetRows
		// truncates trailing empties, so pad back out.
		cells := make([]string, len(headers))
		for j := range cells {
			if j < len(raw) {
				cells[j] = strings.TrimSpace(raw[j])
			}
		}

		row := domain.Row{
			Cells:       cells,
			WorkMinutes: parseFloat(cell(domain.ColumnWorkMinutes)),
			Words:       parseInt(cell(domain.ColumnWords)),
			PaidMinutes: parseFloat(cell(domain.ColumnPaidMinutes)),
			Clients:     parseInt(cell(domain.ColumnClients)),
		}
		if d, ok := parseDate(cell(domain.ColumnDate)); ok {
			row.Date = d
			row.DateValid = true
		}
		table.Rows = append(table.Rows, row)
	}

	l.logger.Info("workbook loaded",
		slog.String("path", path),
		slog.String("sheet", sheetName),
		slog.Int("rows", len(table.Rows)),
		slog.Duration("duration", time.Since(start)))

	return table, nil
}

// isBlankRow reports whether every cell in the row is empty or whitespace.
func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseFloat coerces a numeric cell, tolerating thousands separators and
// surrounding space. Blank or unparseable cells coerce to zero.
func parseFloat(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// parseInt coerces an integer cell the same way parseFloat does. Cells that
// excelize renders with a fractional part (e.g. "1500.0") fall back to the
// float path and truncate.
func parseInt(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(v)
	}
	return 0
}

// parseDate coerces a date cell. Cells are tried against the known display
// layouts and then as an Excel serial number. An unparseable date yields
// ok=false; the row stays in the table but is excluded from date-filtered
// aggregates.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}

	// Unformatted date cells come back as serial numbers (days since the
	// 1900 epoch). 60 is the first serial after Excel's phantom leap day.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 60 {
		if d, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return d, true
		}
	}

	return time.Time{}, false
}
