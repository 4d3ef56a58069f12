package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-preview"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "weave",
		Short: "Weave - reactive components from HTML templates",
		Long: `Weave compiles .weave templates, HTML with an embedded block of Go,
into Go components that build and update a DOM through the weave runtime.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add commands
	rootCmd.AddCommand(newCompileCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newCacheCommand())
	rootCmd.AddCommand(newInitCommand())

	return rootCmd
}
