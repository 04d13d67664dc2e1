// Package version carries build metadata stamped in via ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of the binary. Overridden at build time.
	Version = "dev"
	// Commit is the git commit hash. Overridden at build time.
	Commit = "unknown"
	// BuildDate is the build timestamp. Overridden at build time.
	BuildDate = "unknown"
)

// Human renders the build metadata for the version command and startup log.
func Human() string {
	return fmt.Sprintf("valwatcher %s (commit %s, built %s)", Version, Commit, BuildDate)
}
