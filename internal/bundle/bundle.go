// Package bundle reads version information from macOS application bundles.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fleet-installer/internal/runner"
)

// ErrNoVersion means the bundle declares neither version key.
var ErrNoVersion = errors.New("bundle declares no version")

// Reader returns the declared version of a bundle.
type Reader interface {
	Version(ctx context.Context, bundlePath string) (string, error)
}

// IsBundle reports whether path is a directory with an Info.plist descriptor.
func IsBundle(path string) bool {
	info, err := os.Stat(filepath.Join(path, "Contents", "Info.plist"))
	return err == nil && !info.IsDir()
}

// Defaults reads Info.plist through the defaults tool, which handles both
// XML and binary property lists.
type Defaults struct {
	Runner runner.Runner
	// Timeout bounds each defaults read; zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a defaults read when Defaults.Timeout is unset.
const DefaultTimeout = 30 * time.Second

var versionKeys = []string{"CFBundleShortVersionString", "CFBundleVersion"}

// Version prefers CFBundleShortVersionString over CFBundleVersion.
func (d Defaults) Version(ctx context.Context, bundlePath string) (string, error) {
	if !IsBundle(bundlePath) {
		return "", fmt.Errorf("%s is not an application bundle", bundlePath)
	}
	abs, err := filepath.Abs(bundlePath)
	if err != nil {
		return "", err
	}
	domain := filepath.Join(abs, "Contents", "Info")
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	for _, key := range versionKeys {
		res, err := d.Runner.Run(ctx, runner.Command{
			Name:        "/usr/bin/defaults",
			Args:        []string{"read", domain, key},
			Timeout:     timeout,
			IdleTimeout: timeout,
		})
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(res.Stdout); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s: %w", bundlePath, ErrNoVersion)
}
