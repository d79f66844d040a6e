package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"fleet-installer/internal/config"
	"fleet-installer/internal/logger"
	"fleet-installer/internal/pipeline"
	"fleet-installer/internal/state"
)

// manifestPath overrides the manifest named in settings.
var manifestPath string

var recipeCmd = &cobra.Command{
	Use:   "install:recipe <name>",
	Short: "Install an application described in the recipe manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}
		r, ok := m.Find(args[0])
		if !ok {
			return fmt.Errorf("no recipe named %q in %s", args[0], manifestFile())
		}
		st := state.Load(statePath())
		rep, err := runRecipe(cmd.Context(), r)
		if err != nil {
			return err
		}
		record(st, r, rep)
		saveState(st)
		return finish(r.Destination, rep)
	},
}

func init() {
	recipeCmd.Flags().StringVar(&manifestPath, "manifest", "", "Recipe manifest (default from settings)")
	syncCmd.Flags().StringVar(&manifestPath, "manifest", "", "Recipe manifest (default from settings)")
}

func manifestFile() string {
	if manifestPath != "" {
		return manifestPath
	}
	return settings.Manifest
}

func loadManifest() (*config.Manifest, error) {
	return config.LoadManifest(manifestFile())
}

// runRecipe resolves a recipe's URL and current version, then runs the
// pipeline. The installed version is read from the destination bundle.
func runRecipe(ctx context.Context, r config.Recipe) (pipeline.Report, error) {
	req := pipeline.Request{
		Destination: r.Destination,
		URL:         r.URL,
		Target:      r.Version,
		Overwrite:   r.Overwrite,
		UserAgent:   r.UserAgent,
	}
	artifact := r.URL
	if r.GitHub != nil {
		gh := newGitHub()
		latest, err := gh.LatestRelease(ctx, r.GitHub.Repo)
		if err != nil {
			return pipeline.Report{}, fmt.Errorf("recipe %s: %w", r.Name, err)
		}
		req.URL = gh.AssetURL(r.GitHub.Repo, latest.Tag, r.GitHub.File)
		req.Target = latest.Version
		artifact = r.GitHub.File
	}

	var (
		kind pipeline.Kind
		err  error
	)
	if r.Kind != "" {
		kind, err = pipeline.KindByName(r.Kind)
	} else {
		kind, err = pipeline.KindFor(artifact)
	}
	if err != nil {
		return pipeline.Report{}, fmt.Errorf("recipe %s: %w", r.Name, err)
	}

	logger.Info("[INFO] Processing recipe %s\n", r.Name)
	return newPipeline(kind, settings.InstallTimeout).Execute(ctx, req), nil
}

func statePath() string {
	return filepath.Join(settings.CacheDir, state.FileName)
}

func record(st *state.State, r config.Recipe, rep pipeline.Report) {
	st.Record(r.Name, state.RecipeState{
		Destination: r.Destination,
		Version:     rep.Version,
		Outcome:     rep.Outcome.String(),
		Message:     rep.Message,
		Run:         rep.RunID,
		At:          time.Now(),
	})
}

func saveState(st *state.State) {
	if err := st.Save(statePath()); err != nil {
		logger.Warn("[WARN] %v\n", err)
	}
}
