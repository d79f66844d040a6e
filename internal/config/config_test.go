package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadSettingsFileAndEnv(t *testing.T) {
	path := writeFile(t, "settings.yaml", `
cache_dir: /var/tmp/cache
install_timeout: 30s
wait_seconds: 5
`)
	t.Setenv("FLEET_USER_AGENT", "curl/8")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/cache", s.CacheDir)
	assert.Equal(t, 30*time.Second, s.InstallTimeout)
	assert.Equal(t, 7200*time.Second, s.SoftwareUpdateTimeout)
	assert.Equal(t, 5, s.WaitSeconds)
	assert.Equal(t, "curl/8", s.UserAgent)
}

func TestLoadSettingsMissingExplicitFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadSettingsRejectsBadTimeout(t *testing.T) {
	path := writeFile(t, "settings.yaml", "install_timeout: 0s\n")
	_, err := LoadSettings(path)
	require.ErrorContains(t, err, "invalid timeout")
}

func TestLoadManifest(t *testing.T) {
	path := writeFile(t, "recipes.yaml", `
recipes:
  - name: Firefox
    destination: /Applications/Firefox.app
    url: https://download.example.com/firefox.dmg
    version: "128.0"
  - name: gh
    destination: /usr/local/bin/gh
    kind: archive
    github:
      repo: cli/cli
      file: gh_macOS.zip
`)
	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Recipes, 2)

	r, ok := m.Find("firefox")
	require.True(t, ok)
	assert.Equal(t, "128.0", r.Version)

	r, ok = m.Find("GH")
	require.True(t, ok)
	require.NotNil(t, r.GitHub)
	assert.Equal(t, "cli/cli", r.GitHub.Repo)

	_, ok = m.Find("chrome")
	assert.False(t, ok)
}

func TestLoadManifestValidation(t *testing.T) {
	cases := map[string]string{
		"no source": `
recipes:
  - name: a
    destination: /Applications/A.app
`,
		"both sources": `
recipes:
  - name: a
    destination: /Applications/A.app
    url: https://x/a.dmg
    github: {repo: o/r, file: a.dmg}
`,
		"duplicate": `
recipes:
  - {name: a, destination: /A.app, url: https://x/a.dmg}
  - {name: A, destination: /B.app, url: https://x/b.dmg}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadManifest(writeFile(t, "recipes.yaml", body))
			assert.Error(t, err)
		})
	}
}
