package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/execabs"

	"github.com/runger/suggestd/internal/config"
	"github.com/runger/suggestd/internal/daemon"
)

// startupTimeout is how long "daemon start" waits for the spawned
// daemon's socket to appear.
const startupTimeout = 5 * time.Second

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the background daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if daemon.IsRunning() {
			if err := runDaemonStop(cmd, args); err != nil {
				return err
			}
		}
		return runDaemonStart(cmd, args)
	},
}

func init() {
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRestartCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()

	if daemon.IsRunningWithPaths(paths) {
		fmt.Printf("%sDaemon already running%s (pid %d)\n",
			colorYellow, colorReset, daemon.RunningPID(paths))
		return nil
	}

	// A previous daemon may have died without cleaning up.
	if err := daemon.CleanupStaleWithPaths(paths); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	pid, err := spawnServe(paths)
	if err != nil {
		return err
	}

	socketPath := cfg.ResolveSocketPath(paths)
	if err := daemon.WaitForSocket(socketPath, startupTimeout); err != nil {
		return fmt.Errorf("daemon did not come up: %w (see %s)", err, paths.LogFile())
	}

	fmt.Printf("%sDaemon started%s (pid %d)\n", colorGreen, colorReset, pid)
	fmt.Printf("%sSocket: %s%s\n", colorDim, socketPath, colorReset)
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()

	if !daemon.IsRunningWithPaths(paths) {
		fmt.Printf("%sDaemon not running%s\n", colorYellow, colorReset)
		return daemon.CleanupStaleWithPaths(paths)
	}

	pid := daemon.RunningPID(paths)
	if err := daemon.StopWithPaths(paths); err != nil {
		return err
	}

	fmt.Printf("%sDaemon stopped%s (pid %d)\n", colorGreen, colorReset, pid)
	return nil
}

// spawnServe runs "suggestd serve" detached from this process, with
// output redirected to the daemon log file.
func spawnServe(paths *config.Paths) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to locate executable: %w", err)
	}

	logFile, err := os.OpenFile(paths.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Log file creation failed, use /dev/null
		logFile, _ = os.Open(os.DevNull)
	}
	defer logFile.Close()

	// execabs prevents executing binaries resolved to relative paths.
	proc := execabs.Command(exe, "serve")
	proc.Stdout = logFile
	proc.Stderr = logFile
	proc.Stdin = nil

	// Detach from parent process group (platform-specific)
	setProcAttr(proc)

	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := proc.Process.Pid

	// Detach from the child so it outlives this command.
	_ = proc.Process.Release()

	return pid, nil
}
