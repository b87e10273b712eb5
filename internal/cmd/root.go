// Package cmd implements the suggestd command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "suggestd",
	Short: "Federated search suggestion daemon",
	Long: `suggestd aggregates search suggestions from multiple sources.

It queries configured suggestion sources (HTTP suggest endpoints, a web
search completer, static entry lists) in parallel, ranks and dedups the
results, and learns shortcuts from what you click.

Run "suggestd search" for the interactive picker, or "suggestd daemon
start" to keep the engine warm in the background.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
