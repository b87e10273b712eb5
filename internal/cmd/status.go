package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/suggestd/internal/config"
	"github.com/runger/suggestd/internal/daemon"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show suggestd status",
	Long: `Show the current status of suggestd, including:
- Daemon status (running/stopped)
- Configuration file location
- Configured suggestion sources
- Shortcut database location

Examples:
  suggestd status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()
	cfg, _ := config.Load() // Ignore error, use defaults

	fmt.Printf("%ssuggestd Status%s\n", colorBold, colorReset)
	fmt.Println(strings.Repeat("-", 40))

	// Daemon status
	fmt.Printf("\n%sDaemon:%s\n", colorBold, colorReset)
	if daemon.IsRunningWithPaths(paths) {
		fmt.Printf("  Status:  %srunning%s\n", colorGreen, colorReset)
		fmt.Printf("  PID:     %d\n", daemon.RunningPID(paths))
		fmt.Printf("  Socket:  %s\n", cfg.ResolveSocketPath(paths))
		printDaemonHealth(cfg, paths)
	} else {
		fmt.Printf("  Status:  %snot running%s\n", colorDim, colorReset)
		fmt.Printf("  Run 'suggestd daemon start' to start it.\n")
	}

	// Configuration
	fmt.Printf("\n%sConfiguration:%s\n", colorBold, colorReset)
	configFile := paths.ConfigFile()
	if _, err := os.Stat(configFile); err == nil {
		fmt.Printf("  File:    %s\n", configFile)
	} else {
		fmt.Printf("  File:    %s (not found, using defaults)\n", configFile)
	}

	// Sources
	fmt.Printf("\n%sSources:%s\n", colorBold, colorReset)
	if len(cfg.Sources) == 0 {
		fmt.Printf("  %snone configured%s\n", colorDim, colorReset)
		fmt.Printf("  Run 'suggestd config init' to write a starter config.\n")
	} else {
		for _, src := range cfg.Sources {
			label := src.Label
			if label == "" {
				label = src.Component
			}
			fmt.Printf("  - %s (%s)\n", label, src.Type)
		}
	}

	// Storage
	fmt.Printf("\n%sStorage:%s\n", colorBold, colorReset)
	dbFile := cfg.ResolveDatabasePath(paths)
	if info, err := os.Stat(dbFile); err == nil {
		fmt.Printf("  Database: %s (%s)\n", dbFile, formatSize(info.Size()))
	} else {
		fmt.Printf("  Database: %s (not created)\n", dbFile)
	}

	return nil
}

// printDaemonHealth asks the running daemon for its status line.
func printDaemonHealth(cfg *config.Config, paths *config.Paths) {
	client, err := daemon.DialClient(cfg.ResolveSocketPath(paths))
	if err != nil {
		fmt.Printf("  Health:  %sunreachable%s (%v)\n", colorYellow, colorReset, err)
		return
	}
	defer client.Close()

	st, err := client.Status()
	if err != nil {
		fmt.Printf("  Health:  %sunreachable%s (%v)\n", colorYellow, colorReset, err)
		return
	}

	fmt.Printf("  Version: %s\n", st.Version)
	fmt.Printf("  Uptime:  %s\n", formatUptime(st.UptimeSecs))
	fmt.Printf("  Clients: %d\n", st.Connections)
}

func formatUptime(secs int64) string {
	d := time.Duration(secs) * time.Second
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	case d >= time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
