// Package cli provides the command-line interface for xsync.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

const defaultConfigDir = ".xsync"

var configDir string

var rootCmd = &cobra.Command{
	Use:   "xsync",
	Short: "Sync posts from X accounts and hashtags into a local content store",
	Long: "xsync fetches posts from configured X accounts and hashtags, filters them by date, age and banned words, " +
		"and reconciles the result against previously written content as a set of additions and deletions.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "xsync %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", defaultConfigDir, "config directory")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
