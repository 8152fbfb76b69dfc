package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for descarteschef.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "descarteschef",
		Short: "Content chef for the Proyecto Descartes site",
		Long: `descarteschef crawls the Proyecto Descartes educational site, downloads
each lesson's HTML package, normalizes it into a deterministic zip archive,
and assembles a validated channel tree ready for import.

Crawled pages are cached in a local SQLite database, so interrupted runs
resume cheaply and unchanged lessons are not re-downloaded.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
