package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-installer/internal/runner"
)

func makeBundle(t *testing.T) string {
	t.Helper()
	app := filepath.Join(t.TempDir(), "Foo.app")
	require.NoError(t, os.MkdirAll(filepath.Join(app, "Contents"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(app, "Contents", "Info.plist"), []byte("<plist/>"), 0644))
	return app
}

func fakeDefaults(values map[string]string) runner.Runner {
	return runner.RunnerFunc(func(_ context.Context, c runner.Command) (runner.Result, error) {
		v, ok := values[c.Args[2]]
		if !ok {
			res := runner.Result{Stderr: "The domain/default pair does not exist", ExitCode: 1}
			return res, &runner.ExitError{Command: c.String(), Result: res}
		}
		return runner.Result{Stdout: v + "\n"}, nil
	})
}

func TestVersionPrefersShortVersion(t *testing.T) {
	app := makeBundle(t)
	d := Defaults{Runner: fakeDefaults(map[string]string{
		"CFBundleShortVersionString": "2.0.0",
		"CFBundleVersion":            "2000",
	})}
	v, err := d.Version(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v)
}

func TestVersionFallsBackToBundleVersion(t *testing.T) {
	app := makeBundle(t)
	var domains []string
	d := Defaults{Runner: runner.RunnerFunc(func(ctx context.Context, c runner.Command) (runner.Result, error) {
		domains = append(domains, c.Args[1])
		return fakeDefaults(map[string]string{"CFBundleVersion": "4180"}).Run(ctx, c)
	})}
	v, err := d.Version(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, "4180", v)
	assert.Equal(t, filepath.Join(app, "Contents", "Info"), domains[0])
}

func TestVersionErrors(t *testing.T) {
	d := Defaults{Runner: fakeDefaults(nil)}

	_, err := d.Version(context.Background(), makeBundle(t))
	require.ErrorIs(t, err, ErrNoVersion)

	_, err = d.Version(context.Background(), t.TempDir())
	require.ErrorContains(t, err, "not an application bundle")
}

func TestVersionReadsAreBounded(t *testing.T) {
	app := makeBundle(t)
	var got []runner.Command
	rec := runner.RunnerFunc(func(ctx context.Context, c runner.Command) (runner.Result, error) {
		got = append(got, c)
		return fakeDefaults(map[string]string{"CFBundleShortVersionString": "1.0"}).Run(ctx, c)
	})

	_, err := Defaults{Runner: rec}.Version(context.Background(), app)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, DefaultTimeout, got[0].Timeout)
	assert.Equal(t, DefaultTimeout, got[0].IdleTimeout)

	got = nil
	_, err = Defaults{Runner: rec, Timeout: 5 * time.Second}.Version(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, got[0].Timeout)
}
