package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"fleet-installer/internal/bundle"
	"fleet-installer/internal/cache"
	"fleet-installer/internal/download"
	"fleet-installer/internal/installer"
	"fleet-installer/internal/logger"
	"fleet-installer/internal/pipeline"
	"fleet-installer/internal/release"
	"fleet-installer/internal/runner"
)

// newPipeline bounds every command the pipeline spawns by timeout.
func newPipeline(kind pipeline.Kind, timeout time.Duration) *pipeline.Pipeline {
	r := runner.Exec{Timeout: timeout, IdleTimeout: timeout}
	return &pipeline.Pipeline{
		Kind:       kind,
		Runner:     r,
		Downloader: download.New(settings.UserAgent),
		Installer:  &installer.Executor{Runner: r, Timeout: timeout},
		Bundles:    bundle.Defaults{Runner: r},
	}
}

func newGitHub() *release.GitHub {
	return &release.GitHub{
		Fetcher: download.New(settings.UserAgent),
		Cache:   cache.New(settings.CacheDir),
	}
}

// installTimeout turns a --timeout value in seconds into a duration, falling
// back to the configured install timeout when unset.
func installTimeout(seconds int) (time.Duration, error) {
	switch {
	case seconds < 0:
		return 0, fmt.Errorf("invalid timeout %d, must be positive", seconds)
	case seconds == 0:
		return settings.InstallTimeout, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

// finish logs a pipeline report, records it for --json and converts it into
// the command's error.
func finish(destination string, rep pipeline.Report) error {
	name := filepath.Base(destination)
	entry := map[string]any{
		"outcome": rep.Outcome.String(),
		"message": rep.Message,
		"run":     rep.RunID,
	}
	if rep.Version != "" {
		entry["version"] = rep.Version
	}
	if rep.Stage != "" {
		entry["stage"] = rep.Stage
	}
	if rep.CleanupErr != nil {
		entry["cleanup"] = rep.CleanupErr.Error()
	}
	if err := jsonReport.Add("install", map[string]any{name: entry}); err != nil {
		logger.Debug("[DEBUG] %v\n", err)
	}

	if rep.ExitCode() == 0 {
		logger.Info("[INFO] %s\n", rep.Message)
		return nil
	}
	if rep.Outcome == pipeline.Failure {
		logger.Error("[ERROR] %s: %s\n", name, rep.Message)
	} else {
		logger.Info("[INFO] %s\n", rep.Message)
	}
	return errReported
}
