// Command sheetgen writes a demo daily-metric tracking workbook so the
// dashboard has something to render before real data exists.
package main

import (
	"flag"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"workpulse/pkg/contracts/domain"
)

func main() {
	out := flag.String("out", "Daily_Metric_Tracking_Sheet.xlsx", "output workbook path")
	days := flag.Int("days", 30, "number of daily rows to generate, ending today")
	sheet := flag.String("sheet", "", "sheet name (empty keeps the workbook default)")
	seed := flag.Int64("seed", 0, "random seed (0 derives one from the clock)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if *days < 1 {
		logger.Error("days must be at least 1", slog.Int("days", *days))
		os.Exit(1)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)
	if *sheet != "" {
		if err := f.SetSheetName(sheetName, *sheet); err != nil {
			logger.Error("Cannot rename sheet",
				slog.String("sheet", *sheet),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		sheetName = *sheet
	}

	header := []interface{}{
		domain.ColumnDate,
		domain.ColumnWorkMinutes,
		domain.ColumnWords,
		domain.ColumnPaidMinutes,
		domain.ColumnClients,
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		logger.Error("Cannot write header row", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The client count is a running platform-user total, so it only grows.
	clients := int64(40 + rng.Intn(60))
	start := time.Now().AddDate(0, 0, -(*days - 1))

	for i := 0; i < *days; i++ {
		day := start.AddDate(0, 0, i)
		workMinutes := math.Round((60+rng.Float64()*420)*2) / 2
		words := int64(200 + rng.Intn(2800))
		paidMinutes := float64(rng.Intn(49)) * 5
		clients += int64(rng.Intn(4))

		row := []interface{}{
			day.Format("2006-01-02"),
			workMinutes,
			words,
			paidMinutes,
			clients,
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			logger.Error("Cannot compute row coordinate",
				slog.Int("row", i+2),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			logger.Error("Cannot write data row",
				slog.String("cell", cell),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("Cannot create output directory",
				slog.String("path", dir),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	if err := f.SaveAs(*out); err != nil {
		logger.Error("Cannot save workbook",
			slog.String("path", *out),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Workbook generated",
		slog.String("path", *out),
		slog.Int("rows", *days),
		slog.Int64("seed", *seed))
}
