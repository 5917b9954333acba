// Package version exposes the release number embedded from the VERSION file.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionRaw string

// Version is the msgraphextract release, trimmed of whitespace.
var Version = strings.TrimSpace(versionRaw)

// Get returns the current version string.
func Get() string {
	return Version
}

// UserAgent is sent on every Graph request.
func UserAgent() string {
	return "msgraphextract/" + Version
}
