package main

import (
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"workpulse/internal/app"
	"workpulse/pkg/contracts"
)

// Embedded dashboard page and static assets
//go:embed all:web
var webFiles embed.FS

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults to config.yaml beside the binary)")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	// Create frontend filesystem from embedded files
	var frontendFS fs.FS
	if sub, err := fs.Sub(webFiles, "web"); err == nil {
		frontendFS = sub
	} else {
		// The API still serves; only the page goes missing.
		slog.Warn("dashboard page embedding failed", slog.String("error", err.Error()))
	}

	application, err := app.NewApplication(*configPath, frontendFS)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
