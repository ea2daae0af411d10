// Package version holds build-time version information for the pmrag binary.
// The variables in this package are populated at build time via -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/pmrag-go/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/pmrag-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/pmrag-go/internal/version.BuildDate=2026-10-01"
//
// Without ldflags (e.g. `go run`) the values fall back to readable defaults.
package version

import "fmt"

// Version is the semantic version of the binary. Defaults to "dev".
var Version = "dev"

// Commit is the short git SHA the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC date the binary was built (RFC3339).
var BuildDate = "unknown"

// String renders the one-line version banner printed by `pmrag version`.
func String() string {
	return fmt.Sprintf("pmrag %s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
