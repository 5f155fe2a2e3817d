// Package version reports build information for vmsession binaries.
package version

import (
	"fmt"
	"runtime"
)

// Overridden at link time:
// go build -ldflags "-X github.com/spin-stack/vmsession/internal/version.Version=v0.2.0"
var (
	// Version is the release tag, or "dev" for unreleased builds.
	Version = "dev"

	// GitCommit is the commit the binary was built from.
	GitCommit = "unknown"

	// BuildDate is the build timestamp, RFC3339.
	BuildDate = "unknown"
)

// Info renders the full version line shown by --version.
func Info() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, go: %s)",
		Version, GitCommit, BuildDate, runtime.Version())
}

// Short returns the bare version string.
func Short() string {
	return Version
}
