package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd runs the server when no subcommand is given, so container images
// can start the binary without arguments.
var rootCmd = &cobra.Command{
	Use:   "media-converter",
	Short: "Batch audio and video conversion with an ffmpeg engine",
	Long: `media-converter stages uploaded media, probes it with ffmpeg and converts
it to the containers, codecs and quality tiers you pick. It runs as an HTTP
service by default; the convert, probe and shell subcommands drive the same
pipeline from the command line.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
