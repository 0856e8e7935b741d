// Package version holds the build version of rosterd.
package version

// Version is stamped at build time via
// -ldflags "-X github.com/shiftops/rosterd/internal/version.Version=v1.2.3"
var Version = "dev"
