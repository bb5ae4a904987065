package core

// Build metadata injected via ldflags:
//
//	go build -ldflags "-X zexplorer/core.Version=$(git describe --tags --always) \
//	  -X zexplorer/core.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ) \
//	  -X zexplorer/core.GitCommit=$(git rev-parse --short HEAD)" .
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersionInfo returns a single formatted version line, e.g.
// "v1.0.0 (built 2024-01-15T10:30:00Z, commit abc1234)".
func GetVersionInfo() string {
	return Version + " (built " + BuildTime + ", commit " + GitCommit + ")"
}
