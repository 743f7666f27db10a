// Package version exposes the build identity stamped through -ldflags at
// release time. The defaults identify an untagged local build.
package version

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
