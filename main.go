package main

import (
	"fleet-installer/cmd"
)

// main delegates to cmd.Execute, which parses flags, runs the subcommand and
// exits non-zero on failure.
//
// fleet-installer is run by a fleet management agent on managed Macs. It:
//   - installs applications from .dmg, .pkg, .zip and other archives, or from
//     the latest GitHub release, only when the installed version is older
//   - applies a YAML manifest of recipes with `sync`
//   - lists, downloads and installs macOS software updates once the machine is
//     idle, then schedules the restart or shutdown they need
func main() {
	cmd.Execute()
}
