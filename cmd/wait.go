package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fleet-installer/internal/logger"
	"fleet-installer/internal/runner"
	"fleet-installer/internal/system"
	"fleet-installer/internal/wait"
)

var waitFlags = map[string]*bool{}

// waitCmd blocks until the selected conditions clear or the time runs out.
// With no condition flags it waits for all of them.
var waitCmd = &cobra.Command{
	Use:   "wait <seconds>",
	Short: "Wait until the machine is idle enough for maintenance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := strconv.Atoi(args[0])
		if err != nil || seconds < 0 {
			return fmt.Errorf("invalid seconds %q", args[0])
		}

		var names []string
		for _, n := range waitOrder {
			if *waitFlags[n] {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			names = waitOrder
		}

		probe := system.New(runner.Exec{}, settings.CPUThreshold)
		conds, err := probe.Conditions(names...)
		if err != nil {
			return err
		}
		w := wait.New(conds...)
		logger.Info("[INFO] Waiting up to %ds for: %v\n", seconds, names)
		err = w.Wait(cmd.Context(), seconds)
		if rerr := jsonReport.Add("wait", w.States()); rerr != nil {
			logger.Debug("[DEBUG] %v\n", rerr)
		}

		var blocked *wait.BlockedError
		if errors.As(err, &blocked) {
			for _, n := range blocked.Names {
				logger.Warn("[WARN]   Waiting for %s\n", n)
			}
			return err
		}
		if err != nil {
			return err
		}
		logger.Info("[INFO] All conditions cleared\n")
		return nil
	},
}

var waitOrder = []string{wait.CPU, wait.Power, wait.FileVault, wait.Screen, wait.User}

func init() {
	for _, c := range []struct{ name, what string }{
		{wait.CPU, "CPU load to drop"},
		{wait.Power, "AC power"},
		{wait.FileVault, "FileVault encryption to finish"},
		{wait.Screen, "display sleep to be allowed"},
		{wait.User, "the console user to log out"},
	} {
		waitFlags[c.name] = waitCmd.Flags().Bool(c.name, false, "Wait for "+c.what)
	}
}
