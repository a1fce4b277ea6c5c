package config

import "time"

// Application constants for the WorkPulse dashboard
const (
	// ServiceName identifies the process in telemetry and config defaults.
	ServiceName = "workpulse"

	// EnvPrefix namespaces environment variables (WORKPULSE_SERVER_PORT, ...)
	EnvPrefix = "WORKPULSE"

	// Defaults
	DefaultPort      = 8090
	DefaultSheetPath = "data/daily_metrics.xlsx"
	DefaultCacheTTL  = 60 * time.Second
	DefaultLogFile   = "logs/workpulse.log"

	// DashboardTitle is the page heading shown above the metric tiles.
	DashboardTitle = "Daily Metric Tracking Dashboard"

	// AutoRefreshNotice is the status banner telling users the page
	// follows the workbook on disk.
	AutoRefreshNotice = "The dashboard updates automatically when the Excel file changes."

	// Routes registered outside the /api group.
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
