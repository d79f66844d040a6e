package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleet-installer/internal/pipeline"
)

var installKinds = []pipeline.Kind{pipeline.DMG{}, pipeline.PKG{}, pipeline.ZIP{}, pipeline.Archive{}}

// installFlags are shared by every install:* command.
type installFlags struct {
	target    string
	installed string
	userAgent string
	overwrite bool
	timeout   int
}

func (f *installFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.target, "target", "", "Version the install must end up at")
	cmd.Flags().StringVar(&f.installed, "installed", "", "Installed version, instead of reading it from the destination")
	cmd.Flags().StringVar(&f.userAgent, "user-agent", "", "User-Agent for the download")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "Replace an existing destination even when not upgrading")
	cmd.Flags().IntVar(&f.timeout, "timeout", 0, "Install timeout in seconds (default from settings, 900)")
}

func (f *installFlags) request(destination, url string) pipeline.Request {
	return pipeline.Request{
		Destination: destination,
		URL:         url,
		Target:      f.target,
		Installed:   f.installed,
		Overwrite:   f.overwrite,
		UserAgent:   f.userAgent,
	}
}

// newInstallCmd builds install:<kind> <destination> <url>.
func newInstallCmd(kind pipeline.Kind) *cobra.Command {
	flags := &installFlags{}
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("install:%s <destination> <url>", kind.Name()),
		Short: fmt.Sprintf("Download a %s and install its contents at destination", kind.Name()),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeout, err := installTimeout(flags.timeout)
			if err != nil {
				return err
			}
			rep := newPipeline(kind, timeout).Execute(cmd.Context(), flags.request(args[0], args[1]))
			return finish(args[0], rep)
		},
	}
	flags.register(cmd)
	return cmd
}
