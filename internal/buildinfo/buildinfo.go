// Package buildinfo carries build-time metadata separate from user configuration.
package buildinfo

import "fmt"

// Context contains build-time metadata that is not user-configurable. It is
// filled from linker flags in main.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// GetVersion returns the version or "unknown".
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return "unknown"
	}
	return c.Version
}

// GetBuildDate returns the build date or "unknown".
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return "unknown"
	}
	return c.BuildDate
}

// Release returns the release identifier reported to error telemetry.
func (c *Context) Release() string {
	return "geolife-importer@" + c.GetVersion()
}

func (c *Context) String() string {
	return fmt.Sprintf("geolife-importer %s (built %s)", c.GetVersion(), c.GetBuildDate())
}
