package cmd

import (
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fleet-installer/internal/config"
	"fleet-installer/internal/logger"
	"fleet-installer/internal/report"
)

var (
	// debug enables [DEBUG] console output, via --debug.
	debug bool
	// jsonOutput silences the console and prints the accumulated report at exit.
	jsonOutput bool
	// settingsPath overrides /Library/Preferences/fleet-installer.yaml.
	settingsPath string

	settings   *config.Settings
	runID      string
	jsonReport = report.New()
)

// errReported marks a failure whose details were already logged.
var errReported = errors.New("failed")

var rootCmd = &cobra.Command{
	Use:           "fleet-installer",
	Short:         "Install and update macOS applications and system software",
	SilenceUsage:  true,
	SilenceErrors: true,

	// Load settings and set up logging before any subcommand runs.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		runID = uuid.NewString()
		s, err := config.LoadSettings(settingsPath)
		if err != nil {
			logger.Init(logger.Config{Debug: debug, Quiet: jsonOutput})
			return err
		}
		settings = s
		logger.Init(logger.Config{Debug: debug, Quiet: jsonOutput, LogDir: s.LogDir, RunID: runID})
		logger.Debug("[DEBUG] Run %s: %s %v\n", runID, cmd.CommandPath(), args)
		return nil
	},
}

// Execute registers flags and subcommands, runs the CLI and exits 1 on any
// failure.
func Execute() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "Settings file (default "+config.DefaultSettingsFile+")")

	for _, kind := range installKinds {
		rootCmd.AddCommand(newInstallCmd(kind))
	}
	rootCmd.AddCommand(githubCmd, recipeCmd, syncCmd, softwareUpdateCmd, waitCmd)

	err := rootCmd.Execute()
	if jsonOutput {
		if werr := jsonReport.Write(os.Stdout); werr != nil && err == nil {
			err = werr
		}
	}
	if err != nil {
		if !errors.Is(err, errReported) {
			logger.Error("[ERROR] %v\n", err)
		}
		os.Exit(1)
	}
}
