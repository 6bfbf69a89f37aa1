// Package version carries the build metadata printed by "cat version".
// The values are set at link time with -ldflags "-X".
package version

var (
	// Version is the release of the cat binary.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is when the binary was built.
	BuildTime = "unknown"
)
