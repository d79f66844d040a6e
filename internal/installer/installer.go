// Package installer runs the OS mechanism that puts a resolved source in place.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fleet-installer/internal/logger"
	"fleet-installer/internal/runner"
	"fleet-installer/internal/source"
)

// InstallError carries the captured output of a failed install command.
type InstallError struct {
	Source source.Resolved
	Output string
	Err    error
}

func (e *InstallError) Error() string {
	msg := fmt.Sprintf("install of %s %s failed: %v", e.Source.Kind, filepath.Base(e.Source.Path), e.Err)
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *InstallError) Unwrap() error { return e.Err }

// Executor installs packages with installer(8) and everything else with ditto(1).
type Executor struct {
	Runner runner.Runner
	// Timeout bounds each command's total and idle time.
	Timeout time.Duration
}

// Install dispatches on src.Kind. Bundles and files replace destination.
func (e *Executor) Install(ctx context.Context, src source.Resolved, destination string) error {
	var cmd runner.Command
	switch src.Kind {
	case source.PackageInstaller:
		logger.Info("[INFO] Installing package %s\n", filepath.Base(src.Path))
		cmd = runner.Command{
			Name: "/usr/sbin/installer",
			Args: []string{"-allowUntrusted", "-pkg", src.Path, "-target", "/"},
		}
	case source.ApplicationBundle, source.PlainFile:
		logger.Info("[INFO] Copying %s to %s\n", filepath.Base(src.Path), destination)
		if src.Kind == source.ApplicationBundle {
			// ditto merges into an existing bundle; stale files must not survive
			if err := os.RemoveAll(destination); err != nil {
				return &InstallError{Source: src, Err: fmt.Errorf("remove previous %s: %w", destination, err)}
			}
		}
		if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
			return &InstallError{Source: src, Err: err}
		}
		cmd = runner.Command{
			Name: "/usr/bin/ditto",
			Args: []string{"-rsrc", src.Path, destination},
		}
	default:
		return &InstallError{Source: src, Err: errors.New("unknown source kind")}
	}

	cmd.Timeout = e.Timeout
	cmd.IdleTimeout = e.Timeout
	logger.Debug("[DEBUG] Running command: %s\n", cmd)
	res, err := e.Runner.Run(ctx, cmd)
	if err != nil {
		return &InstallError{Source: src, Output: res.Output(), Err: err}
	}
	return nil
}
