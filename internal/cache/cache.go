// Package cache persists small values (ETags, response bodies, last-seen
// versions) under a shared directory, one file per key.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"fleet-installer/internal/logger"
)

// Store is rooted at Dir, which is created on first write.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir. Nothing is created until the first Write.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

var (
	unsafeKey = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	dotRun    = regexp.MustCompile(`\.{2,}`)
)

// Key joins parts into a deterministic, filesystem-safe cache name,
// e.g. Key("github", "cli/cli", "etag") == "github.cli.cli.etag".
func Key(parts ...string) string {
	joined := strings.Join(parts, ".")
	joined = strings.ReplaceAll(joined, "/", ".")
	joined = unsafeKey.ReplaceAllString(joined, "_")
	return strings.Trim(dotRun.ReplaceAllString(joined, "."), ".")
}

// Path returns where name is stored.
func (s *Store) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Read returns the cached value and whether it exists.
func (s *Store) Read(name string) (string, bool) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debug("[DEBUG] Cache read %s failed: %v\n", name, err)
		}
		return "", false
	}
	return string(data), true
}

// Write stores value under name, creating the cache directory if needed.
func (s *Store) Write(name, value string) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", s.Dir, err)
	}
	tmp := s.Path(name) + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0644); err != nil {
		return fmt.Errorf("write cache %s: %w", name, err)
	}
	if err := os.Rename(tmp, s.Path(name)); err != nil {
		return fmt.Errorf("commit cache %s: %w", name, err)
	}
	logger.Debug("[DEBUG] Cached %s (%d bytes)\n", name, len(value))
	return nil
}

// Remove deletes name; a missing entry is not an error.
func (s *Store) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
