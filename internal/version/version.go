// Package version carries build metadata for the agent binary.
//
// The variables are stamped at link time, e.g.
//
//	go build -ldflags "-X github.com/dileep-u-k/openapi-agent/internal/version.Version=v1.2.0"
//
// and are surfaced by the `version` command, the /healthz endpoint, and the
// User-Agent header sent with every tool call.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// BuildInfo is the resolved build metadata of the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata of the running binary.
func Get() BuildInfo {
	return BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// UserAgent is the User-Agent sent with outbound tool calls.
// A User-Agent default header in the HeaderStore overrides it.
func UserAgent() string {
	return fmt.Sprintf("OpenAPI-Agent/%s", Version)
}
