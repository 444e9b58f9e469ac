// Package version holds build-time version metadata.
// Values are injected at link time via -ldflags; defaults mark dev builds.
package version

import "fmt"

var (
	// Version is the semantic version, set via -ldflags at release build.
	Version = "0.1.0-dev"

	// Commit is the short git commit hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// Short returns the bare version string, e.g. "0.1.0-dev".
func Short() string {
	return Version
}

// Map returns version fields for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}

// Info returns a human-readable version line for CLI output.
func Info() string {
	return fmt.Sprintf("converse %s (commit %s, built %s)", Version, Commit, Date)
}
