// Package version reports the build version of the netdiscovery binaries.
package version

// Set with -ldflags "-X github.com/carverauto/netdiscovery/pkg/version.version=...".
//
//nolint:gochecknoglobals // ldflags injection
var (
	version = "dev"
	buildID = "dev"
)

// GetVersion returns the release version.
func GetVersion() string {
	return version
}

// GetFullVersion returns the version together with the build id.
func GetFullVersion() string {
	return version + " (build: " + buildID + ")"
}
