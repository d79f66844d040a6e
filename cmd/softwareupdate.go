package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fleet-installer/internal/logger"
	"fleet-installer/internal/pipeline"
	"fleet-installer/internal/runner"
	"fleet-installer/internal/softwareupdate"
	"fleet-installer/internal/system"
	"fleet-installer/internal/wait"
)

var suFlags struct {
	opts    softwareupdate.Options
	wait    int
	timeout int
	skip    map[string]*bool
}

var softwareUpdateCmd = &cobra.Command{
	Use:   "softwareupdate",
	Short: "List, download or install macOS software updates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := suFlags.opts
		opts.JSON = jsonOutput

		opts.Wait = settings.WaitSeconds
		if cmd.Flags().Changed("wait") {
			opts.Wait = suFlags.wait
		}
		opts.Timeout = settings.SoftwareUpdateTimeout
		if cmd.Flags().Changed("timeout") {
			if suFlags.timeout <= 0 {
				return fmt.Errorf("invalid timeout %d, must be positive", suFlags.timeout)
			}
			opts.Timeout = time.Duration(suFlags.timeout) * time.Second
		}
		opts.Skip = map[string]bool{}
		for name, skip := range suFlags.skip {
			opts.Skip[name] = *skip
		}

		ctx := cmd.Context()
		r := runner.Exec{}
		probe := system.New(r, settings.CPUThreshold)

		osVersion, err := probe.OSVersion(ctx)
		if err != nil {
			logger.Warn("[WARN] Cannot read macOS version: %v\n", err)
		}
		parser := softwareupdate.Parser{Modern: softwareupdate.IsModern(osVersion)}
		if chip, _ := probe.SecurityChip(ctx); chip {
			parser.Firmware = softwareupdate.NewInstallLog(osVersion)
		}

		o := &softwareupdate.Orchestrator{
			Runner:    r,
			Parser:    parser,
			Facts:     probe,
			Report:    jsonReport,
			Scheduler: softwareupdate.At{Runner: r},
			Options:   opts,
			Out:       os.Stdout,
		}
		res := o.Execute(ctx)
		if res.Outcome == pipeline.Failure {
			logger.Error("[ERROR] %s\n", res.Message)
			return errReported
		}
		logger.Info("[INFO] %s\n", res.Message)
		return nil
	},
}

func init() {
	f := softwareUpdateCmd.Flags()
	f.BoolVar(&suFlags.opts.List, "list", false, "List available updates")
	f.BoolVar(&suFlags.opts.Count, "count", false, "Count available updates")
	f.BoolVar(&suFlags.opts.Summary, "summary", false, "Summarize updates and machine state")
	f.BoolVar(&suFlags.opts.Download, "download", false, "Only download updates")
	f.BoolVar(&suFlags.opts.Install, "install", false, "Install updates, then restart or shut down if required")
	f.BoolVar(&suFlags.opts.NoScan, "no-scan", false, "Use the previous scan instead of scanning again")
	f.IntVar(&suFlags.wait, "wait", softwareupdate.DefaultWait, "Seconds to wait for conditions before installing")
	f.IntVar(&suFlags.timeout, "timeout", int(softwareupdate.DefaultTimeout/time.Second), "softwareupdate timeout in seconds")

	suFlags.skip = map[string]*bool{}
	for _, c := range []struct{ name, what string }{
		{wait.CPU, "CPU load"},
		{wait.Power, "AC power"},
		{wait.FileVault, "FileVault encryption"},
		{wait.Screen, "display sleep to be allowed"},
		{wait.User, "user logout"},
		{wait.Catalog, "the update catalog"},
	} {
		suFlags.skip[c.name] = f.Bool("skip-"+c.name, false, "Do not wait for "+c.what)
	}
}
