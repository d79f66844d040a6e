package pipeline

import (
	"fleet-installer/internal/archive"
	"fleet-installer/internal/source"
)

// Request is what the operator asked for.
type Request struct {
	// Destination is the installed path, e.g. /Applications/Foo.app.
	Destination string
	URL         string
	// Target is the authoritative current version; empty when unknown.
	Target string
	// Installed overrides reading the installed version from Destination.
	Installed string
	Overwrite bool
	UserAgent string
}

// Run is the state of one pipeline execution, passed to every stage.
type Run struct {
	ID      string
	Request Request
	Session *archive.Session

	// Artifact is the downloaded file; artifactDir is its private parent.
	Artifact    string
	artifactDir string
	// Dir is the mounted volume or extraction directory, if any.
	Dir    string
	Source *source.Resolved
	// Target starts as Request.Target and may be learned from the source bundle.
	Target string
	// Upgrade is set once UpgradeCheck found an older installed version.
	Upgrade bool
}
