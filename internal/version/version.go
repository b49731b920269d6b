// Package version provides build version information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the release version of brs-dap. Release builds override it with
// -ldflags "-X github.com/ctagard/brs-dap/internal/version.Version=...".
var Version = "0.1.0"

// Commit is the source revision, set the same way. Empty for local builds.
var Commit = ""

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// String describes the build for `brs-dap version`.
func String() string {
	rev := Commit
	if rev == "" {
		rev = "unknown"
	}
	return fmt.Sprintf("brs-dap %s (commit %s, %s/%s, %s)",
		Version, rev, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
