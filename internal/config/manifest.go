package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GitHubSource points a recipe at the latest release of a repository.
// - Repo: "owner/name".
// - File: release asset filename.
type GitHubSource struct {
	Repo string `yaml:"repo"`
	File string `yaml:"file"`
}

// Recipe is a static per-application install descriptor.
// Exactly one of URL or GitHub must be set. Version, when set, is the
// authoritative current version used by the upgrade check; GitHub recipes
// derive it from the release tag instead.
type Recipe struct {
	Name        string        `yaml:"name"`
	Destination string        `yaml:"destination"`
	URL         string        `yaml:"url"`
	GitHub      *GitHubSource `yaml:"github"`
	Version     string        `yaml:"version"`
	Kind        string        `yaml:"kind"`
	UserAgent   string        `yaml:"user_agent"`
	Overwrite   bool          `yaml:"overwrite"`
}

// Manifest is the top-level recipe file.
type Manifest struct {
	Recipes []Recipe `yaml:"recipes"`
}

// LoadManifest reads and validates a recipe manifest.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest %s: %w", path, err)
	}
	seen := make(map[string]bool, len(m.Recipes))
	for i, r := range m.Recipes {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("recipe #%d: %w", i+1, err)
		}
		key := strings.ToLower(r.Name)
		if seen[key] {
			return nil, fmt.Errorf("recipe %q defined twice", r.Name)
		}
		seen[key] = true
	}
	return &m, nil
}

// Find returns the recipe with the given name, case-insensitively.
func (m *Manifest) Find(name string) (Recipe, bool) {
	for _, r := range m.Recipes {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Recipe{}, false
}

func (r Recipe) validate() error {
	if r.Name == "" {
		return fmt.Errorf("missing name")
	}
	if r.Destination == "" {
		return fmt.Errorf("%s: missing destination", r.Name)
	}
	switch {
	case r.URL == "" && r.GitHub == nil:
		return fmt.Errorf("%s: needs url or github", r.Name)
	case r.URL != "" && r.GitHub != nil:
		return fmt.Errorf("%s: url and github are mutually exclusive", r.Name)
	case r.GitHub != nil && (r.GitHub.Repo == "" || r.GitHub.File == ""):
		return fmt.Errorf("%s: github needs repo and file", r.Name)
	}
	return nil
}
