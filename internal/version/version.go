// Package version holds build-time version information, set via ldflags.
package version

// Version is the semantic version of the build.
var Version = "dev"

// Commit is the git commit hash of the build.
var Commit = "unknown"
