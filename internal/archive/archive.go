// Package archive mounts disk images and expands archives for a single
// install run, and releases everything it acquired when the run ends.
package archive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"fleet-installer/internal/runner"
)

// ResourceError reports a mount, unmount or extraction that could not complete.
type ResourceError struct {
	Op     string
	Path   string
	Output string
	Err    error
}

func (e *ResourceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed", e.Op, e.Path)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, "\n%s", out)
	}
	return b.String()
}

func (e *ResourceError) Unwrap() error { return e.Err }

// MountHandle is a live disk-image attachment.
type MountHandle struct {
	Image  string
	Device string
	Volume string
}

// ExtractionHandle is a temporary directory holding an expanded archive.
type ExtractionHandle struct {
	Archive string
	Dir     string
}

// Session tracks resources acquired during one run. It is not safe for
// concurrent use; runs are sequential.
type Session struct {
	Runner runner.Runner
	// TempDir is the parent of extraction directories; empty means os.TempDir().
	TempDir string
	// MountRoot replaces /Volumes as the parent of mounted volumes when set.
	MountRoot string
	// PollInterval and UnmountPolls bound the wait for a detached volume to vanish.
	PollInterval time.Duration
	UnmountPolls int
	// CommandTimeout bounds the total and idle time of hdiutil and unzip.
	CommandTimeout time.Duration

	mounts      map[string]MountHandle
	mountOrder  []string
	extractions map[string]ExtractionHandle
	extractOrd  []string

	volumeGone func(path string) bool
}

// DefaultCommandTimeout bounds each hdiutil and unzip invocation.
const DefaultCommandTimeout = 10 * time.Minute

// NewSession returns a Session with the standard one-second, thirty-poll
// unmount bound and DefaultCommandTimeout.
func NewSession(r runner.Runner) *Session {
	return &Session{
		Runner:         r,
		PollInterval:   time.Second,
		UnmountPolls:   30,
		CommandTimeout: DefaultCommandTimeout,
		mounts:         map[string]MountHandle{},
		extractions:    map[string]ExtractionHandle{},
	}
}

func (s *Session) init() {
	if s.CommandTimeout <= 0 {
		s.CommandTimeout = DefaultCommandTimeout
	}
	if s.mounts == nil {
		s.mounts = map[string]MountHandle{}
	}
	if s.extractions == nil {
		s.extractions = map[string]ExtractionHandle{}
	}
	if s.volumeGone == nil {
		s.volumeGone = func(path string) bool {
			_, err := os.Stat(path)
			return os.IsNotExist(err)
		}
	}
}

// Mounts returns live mounts in acquisition order.
func (s *Session) Mounts() []MountHandle {
	out := make([]MountHandle, 0, len(s.mountOrder))
	for _, k := range s.mountOrder {
		out = append(out, s.mounts[k])
	}
	return out
}

// Extractions returns live extraction directories in acquisition order.
func (s *Session) Extractions() []ExtractionHandle {
	out := make([]ExtractionHandle, 0, len(s.extractOrd))
	for _, k := range s.extractOrd {
		out = append(out, s.extractions[k])
	}
	return out
}

// Release unmounts every mount and deletes every extraction directory the
// session still holds. It attempts all of them and returns the combined errors.
func (s *Session) Release(ctx context.Context) error {
	var merr *multierror.Error
	for _, h := range s.Mounts() {
		if err := s.Unmount(ctx, h); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	for _, h := range s.Extractions() {
		if err := s.Remove(h); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}

func (s *Session) command(name string, args ...string) runner.Command {
	return runner.Command{Name: name, Args: args, Timeout: s.CommandTimeout, IdleTimeout: s.CommandTimeout}
}

func removeKey(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
