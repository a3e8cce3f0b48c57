package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"media-converter/internal/startup"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := startup.GetBuildInfo()
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "media-converter %s (commit %s, built %s, %s %s/%s)\n",
			info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		return err
	},
}
