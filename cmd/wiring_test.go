package cmd

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-installer/internal/bundle"
	"fleet-installer/internal/config"
	"fleet-installer/internal/logger"
	"fleet-installer/internal/pipeline"
	"fleet-installer/internal/report"
	"fleet-installer/internal/runner"
)

func withSettings(t *testing.T) {
	t.Helper()
	prev, prevReport := settings, jsonReport
	settings = &config.Settings{InstallTimeout: 900 * time.Second, CacheDir: t.TempDir()}
	jsonReport = report.New()
	logger.SetOutput(io.Discard)
	t.Cleanup(func() { settings, jsonReport = prev, prevReport })
}

func TestInstallTimeout(t *testing.T) {
	withSettings(t)

	d, err := installTimeout(0)
	require.NoError(t, err)
	assert.Equal(t, 900*time.Second, d)

	d, err = installTimeout(30)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	_, err = installTimeout(-1)
	assert.Error(t, err)
}

func TestFinishMapsReports(t *testing.T) {
	withSettings(t)

	assert.NoError(t, finish("/Applications/Foo.app", pipeline.Report{
		RunID: "r1", Outcome: pipeline.Success, Message: "Installed", Version: "2.0.0",
	}))
	err := finish("/Applications/Bar.app", pipeline.Report{
		RunID: "r2", Outcome: pipeline.Failure, Stage: "verify-install",
		Message: "New Version (1.9.0) != Target Version (2.0.0)!",
	})
	assert.True(t, errors.Is(err, errReported))
	err = finish("/Applications/Baz.app", pipeline.Report{
		RunID: "r3", Outcome: pipeline.Success, CleanupErr: errors.New("detach failed"),
	})
	assert.True(t, errors.Is(err, errReported))

	v, ok := jsonReport.Get("install")
	require.True(t, ok)
	installs := v.(map[string]any)
	assert.Equal(t, map[string]any{
		"outcome": "success", "message": "Installed", "run": "r1", "version": "2.0.0",
	}, installs["Foo.app"])
	assert.Equal(t, "verify-install", installs["Bar.app"].(map[string]any)["stage"])
	assert.Equal(t, "detach failed", installs["Baz.app"].(map[string]any)["cleanup"])
}

func TestNewPipelineBoundsCommands(t *testing.T) {
	withSettings(t)

	p := newPipeline(pipeline.DMG{}, 300*time.Second)
	assert.Equal(t, runner.Exec{Timeout: 300 * time.Second, IdleTimeout: 300 * time.Second}, p.Runner)
	assert.Equal(t, p.Runner, p.Bundles.(bundle.Defaults).Runner)
}
