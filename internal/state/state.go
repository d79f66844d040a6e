// Package state remembers the last result of every recipe across runs.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fleet-installer/internal/logger"
)

// FileName is the state file kept in the cache directory.
const FileName = "fleet-installer-state.json"

// RecipeState is the outcome of the most recent run of one recipe.
type RecipeState struct {
	Destination string    `json:"destination"`
	Version     string    `json:"version,omitempty"`
	Outcome     string    `json:"outcome"`
	Message     string    `json:"message,omitempty"`
	Run         string    `json:"run"`
	At          time.Time `json:"at"`
}

// State maps recipe names to their last result.
type State struct {
	Recipes map[string]RecipeState `json:"recipes"`
}

// Load reads the state file. A missing or unreadable file yields an empty
// State so a damaged file never blocks installs.
func Load(path string) *State {
	st := &State{}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, st); err != nil {
			logger.Warn("[WARN] Ignoring damaged state file %s: %v\n", path, err)
			st = &State{}
		}
	} else if !os.IsNotExist(err) {
		logger.Warn("[WARN] Cannot read state file %s: %v\n", path, err)
	}
	if st.Recipes == nil {
		st.Recipes = make(map[string]RecipeState)
	}
	return st
}

// Record stores a recipe result.
func (s *State) Record(name string, rs RecipeState) {
	if s.Recipes == nil {
		s.Recipes = make(map[string]RecipeState)
	}
	s.Recipes[name] = rs
}

// Save writes the state file atomically.
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	logger.Debug("[DEBUG] Writing state to %s\n", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write state file %s: %w", path, err)
	}
	return nil
}
