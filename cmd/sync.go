package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fleet-installer/internal/logger"
	"fleet-installer/internal/state"
)

// syncCmd runs every recipe in the manifest in order. A failing recipe is
// logged and the rest still run.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Install or upgrade every application in the recipe manifest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}

		st := state.Load(statePath())
		var failed []string
		for _, r := range m.Recipes {
			if prev, ok := st.Recipes[r.Name]; ok {
				logger.Debug("[DEBUG] %s last ran %s: %s %s\n", r.Name, prev.At.Format(time.RFC3339), prev.Outcome, prev.Version)
			}
			rep, err := runRecipe(cmd.Context(), r)
			if err != nil {
				logger.Error("[ERROR] %v\n", err)
				failed = append(failed, r.Name)
				continue
			}
			record(st, r, rep)
			if err := finish(r.Destination, rep); err != nil {
				failed = append(failed, r.Name)
			}
		}
		saveState(st)

		if len(failed) > 0 {
			return fmt.Errorf("%d of %d recipes failed: %v", len(failed), len(m.Recipes), failed)
		}
		logger.Info("[INFO] All %d recipes are up to date\n", len(m.Recipes))
		return nil
	},
}
