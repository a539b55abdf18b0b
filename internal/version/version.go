// Package version exposes the foreman release version embedded at build
// time.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the release version from the embedded VERSION file.
func Get() string {
	return strings.TrimSpace(raw)
}
