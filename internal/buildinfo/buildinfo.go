// Package buildinfo holds release metadata stamped in with
// -ldflags "-X github.com/aidanlsb/dailysync/internal/buildinfo.Version=...".
package buildinfo

// Empty for local builds.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)
