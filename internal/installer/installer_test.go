package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-installer/internal/runner"
	"fleet-installer/internal/source"
)

type recorder struct {
	cmds []runner.Command
	res  runner.Result
	err  error
}

func (r *recorder) Run(_ context.Context, c runner.Command) (runner.Result, error) {
	r.cmds = append(r.cmds, c)
	return r.res, r.err
}

func TestInstallPackage(t *testing.T) {
	rec := &recorder{}
	e := &Executor{Runner: rec, Timeout: 900 * time.Second}

	err := e.Install(context.Background(), source.Resolved{Kind: source.PackageInstaller, Path: "/Volumes/Foo/Foo.pkg"}, "/Applications/Foo.app")
	require.NoError(t, err)
	require.Len(t, rec.cmds, 1)
	assert.Equal(t, "/usr/sbin/installer", rec.cmds[0].Name)
	assert.Equal(t, []string{"-allowUntrusted", "-pkg", "/Volumes/Foo/Foo.pkg", "-target", "/"}, rec.cmds[0].Args)
	assert.Equal(t, 900*time.Second, rec.cmds[0].Timeout)
	assert.Equal(t, 900*time.Second, rec.cmds[0].IdleTimeout)
}

func TestInstallBundleReplacesDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "Applications", "Foo.app")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "Contents", "Stale"), 0755))

	rec := &recorder{}
	e := &Executor{Runner: rec}
	err := e.Install(context.Background(), source.Resolved{Kind: source.ApplicationBundle, Path: "/Volumes/Foo/Foo.app"}, dest)
	require.NoError(t, err)

	assert.NoDirExists(t, dest)
	assert.DirExists(t, filepath.Dir(dest))
	require.Len(t, rec.cmds, 1)
	assert.Equal(t, "/usr/bin/ditto", rec.cmds[0].Name)
	assert.Equal(t, []string{"-rsrc", "/Volumes/Foo/Foo.app", dest}, rec.cmds[0].Args)
}

func TestInstallFailureCarriesOutput(t *testing.T) {
	res := runner.Result{Stderr: "installer: Error - the package path specified was invalid", ExitCode: 1}
	rec := &recorder{res: res, err: &runner.ExitError{Command: "installer", Result: res}}
	e := &Executor{Runner: rec}

	err := e.Install(context.Background(), source.Resolved{Kind: source.PackageInstaller, Path: "/x/Foo.pkg"}, "/Applications/Foo.app")
	var ie *InstallError
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, ie.Output, "package path specified was invalid")
	assert.Contains(t, err.Error(), "package installer Foo.pkg")

	var ee *runner.ExitError
	assert.True(t, errors.As(err, &ee))
}

func TestInstallTimeoutIsInstallFailure(t *testing.T) {
	rec := &recorder{err: runner.ErrIdleTimeout}
	e := &Executor{Runner: rec}
	err := e.Install(context.Background(), source.Resolved{Kind: source.PlainFile, Path: "/x/gh"}, filepath.Join(t.TempDir(), "gh"))
	require.ErrorIs(t, err, runner.ErrIdleTimeout)
}
