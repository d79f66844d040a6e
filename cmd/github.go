package cmd

import (
	"github.com/spf13/cobra"

	"fleet-installer/internal/logger"
	"fleet-installer/internal/pipeline"
)

var githubFlags = &installFlags{}

// githubCmd installs an asset of the latest GitHub release. The release tag,
// minus any "v", is the target version.
var githubCmd = &cobra.Command{
	Use:   "install:github <destination> <owner/repo> <file>",
	Short: "Install an asset from the latest GitHub release of a repository",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		destination, repo, file := args[0], args[1], args[2]
		timeout, err := installTimeout(githubFlags.timeout)
		if err != nil {
			return err
		}
		kind, err := pipeline.KindFor(file)
		if err != nil {
			return err
		}

		gh := newGitHub()
		latest, err := gh.LatestRelease(cmd.Context(), repo)
		if err != nil {
			return err
		}
		logger.Info("[INFO] Latest release of %s is %s\n", repo, latest.Tag)

		req := githubFlags.request(destination, gh.AssetURL(repo, latest.Tag, file))
		if req.Target == "" {
			req.Target = latest.Version
		}
		return finish(destination, newPipeline(kind, timeout).Execute(cmd.Context(), req))
	},
}

func init() {
	githubFlags.register(githubCmd)
}
