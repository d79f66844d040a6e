package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSettingsFile is read when present and no --config path is given.
const DefaultSettingsFile = "/Library/Preferences/fleet-installer.yaml"

// Settings holds operator-tunable values. Every key can also be set through
// the environment with a FLEET_ prefix, e.g. FLEET_CACHE_DIR.
type Settings struct {
	CacheDir              string        `mapstructure:"cache_dir"`
	LogDir                string        `mapstructure:"log_dir"`
	UserAgent             string        `mapstructure:"user_agent"`
	InstallTimeout        time.Duration `mapstructure:"install_timeout"`
	SoftwareUpdateTimeout time.Duration `mapstructure:"softwareupdate_timeout"`
	WaitSeconds           int           `mapstructure:"wait_seconds"`
	CPUThreshold          float64       `mapstructure:"cpu_threshold"`
	Manifest              string        `mapstructure:"manifest"`
}

// DefaultUserAgent is browser-like because some vendor CDNs reject other clients.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_dir", DefaultCacheDir())
	v.SetDefault("log_dir", "/Library/Logs/fleet-installer")
	v.SetDefault("user_agent", DefaultUserAgent)
	v.SetDefault("install_timeout", 900*time.Second)
	v.SetDefault("softwareupdate_timeout", 7200*time.Second)
	v.SetDefault("wait_seconds", 60)
	v.SetDefault("cpu_threshold", 0.75)
	v.SetDefault("manifest", "/Library/Preferences/fleet-installer-recipes.yaml")
}

// DefaultCacheDir prefers the Jamf helper cache, falling back to the temp dir.
func DefaultCacheDir() string {
	const jamf = "/Library/JSS"
	if info, err := os.Stat(jamf); err == nil && info.IsDir() {
		return filepath.Join(jamf, "HelperCache")
	}
	return filepath.Join(os.TempDir(), "HelperCache")
}

// LoadSettings reads path (or DefaultSettingsFile when path is empty) and
// overlays FLEET_* environment variables. A missing default file is not an error;
// a missing explicit file is.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("fleet")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultSettingsFile
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read settings %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if s.InstallTimeout <= 0 || s.SoftwareUpdateTimeout <= 0 {
		return nil, fmt.Errorf("invalid timeout in settings: install=%s softwareupdate=%s",
			s.InstallTimeout, s.SoftwareUpdateTimeout)
	}
	return &s, nil
}
