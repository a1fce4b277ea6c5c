// Package config loads, validates, and defaults the WorkPulse dashboard
// configuration. Load builds the effective config in three layers, each
// overriding the one below:
//
//	1. Environment variables (highest priority)
//	2. A YAML file (-config flag, or a discovered config.yaml)
//	3. Built-in defaults
//
// Discovery checks config.yaml in the working directory, then
// configs/config.yaml, then config.yaml beside the binary. When nothing
// is found, defaults plus environment carry a fresh install; an explicit
// -config path that cannot be read is an error.
//
// # Environment Variables
//
// Variables are namespaced under the WORKPULSE prefix and mirror the
// struct layout section by section:
//
//	WORKPULSE_SERVER_PORT=8090
//	WORKPULSE_SHEET_PATH=/srv/metrics/daily_metrics.xlsx
//	WORKPULSE_SHEET_CACHE_TTL=60s
//	WORKPULSE_LOGGING_LEVEL=info
//	WORKPULSE_OBSERVABILITY_METRICS_ENABLED=true
//
// # Validation
//
// The merged config is validated once, at the end of Load, with
// validator struct tags; every offending field is reported in a single
// error so a bad deployment fails fast and completely.
package config
