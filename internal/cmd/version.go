package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runger/suggestd/internal/daemon"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("suggestd %s\n", Version)
		fmt.Printf("  commit: %s\n", GitCommit)
		fmt.Printf("  built:  %s\n", BuildDate)
	},
}

func init() {
	// The daemon reports the same version over the status operation.
	daemon.Version = Version
}
