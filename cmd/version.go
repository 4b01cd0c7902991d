package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spigell/job-radar/internal/sources"
)

// Actual version and commit can be specified in build command:
// -ldflags "-X github.com/spigell/job-radar/cmd.version=v1.0.0 -X github.com/spigell/job-radar/cmd.commit=abc123"
var (
	version = "unknown"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the list of supported platforms",
	// Skip config loading, version must work anywhere.
	PersistentPreRun: func(*cobra.Command, []string) {},
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s (commit %s)\n", app, version, commit)
		fmt.Fprintf(cmd.OutOrStdout(), "platforms: %s\n", strings.Join(sources.NewDefaultRegistry(sources.Deps{}).Names(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
