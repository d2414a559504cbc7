// Package cmd defines the CLI commands for the ecitizen-crawler executable.
package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ecitizen-crawler",
		Short: "A polite crawler for the eCitizen government service directory.",
		Long: `ecitizen-crawler walks the public eCitizen service directory
(ministries, departments, agencies, services, and the FAQ page), resolves
the pages into a normalized entity graph with stable identifiers, validates
the graph, and exports it as CSV and JSON datasets.

Fetched pages are cached locally, so an interrupted run resumes from where
it stopped without touching the network for pages it already has.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is built-in settings + ECITIZEN_* env)")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() error {
	return newRootCmd().Execute()
}
