package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the application release, reported by /api/version and
	// rendered in the dashboard footer.
	Version = "1.2.0"

	// APIVersion tags the HTTP and WebSocket message contracts. Bump it
	// when a payload changes shape, not on every release.
	APIVersion = "v1"
)

// Stamped by release builds through -ldflags; plain go build leaves them
// at "unknown".
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is the full build identity printed by the -version flag.
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo collects compile-time and runtime identity in one struct.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		APIVersion:   APIVersion,
	}
}

// GetVersionString returns the short "WorkPulse vX.Y.Z" form.
func GetVersionString() string {
	return fmt.Sprintf("WorkPulse v%s", Version)
}

// GetFullVersionString returns the one-line form with build metadata,
// suitable for -version output and startup logs.
func GetFullVersionString() string {
	info := GetVersionInfo()
	return fmt.Sprintf("%s (built: %s, commit: %s, go: %s, os: %s/%s)",
		GetVersionString(), info.BuildTime, info.GitCommit,
		info.GoVersion, info.OS, info.Architecture)
}
