// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/melonneet/ezhishi-chatbot/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/melonneet/ezhishi-chatbot/internal/buildinfo.Commit=...
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
// Inject via: -X github.com/melonneet/ezhishi-chatbot/internal/buildinfo.BuildDate=...
var BuildDate = ""

// String returns "version (commit, date)" with "dev" for an unstamped build.
func String() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	switch {
	case Commit != "" && BuildDate != "":
		return v + " (" + Commit + ", " + BuildDate + ")"
	case Commit != "":
		return v + " (" + Commit + ")"
	}
	return v
}
