package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runger/suggestd/internal/config"
	"github.com/runger/suggestd/internal/transport"
)

// ReloadFunc is a function called on SIGHUP to reload configuration.
type ReloadFunc func() error

// Run starts the daemon and blocks until shutdown.
// It handles signals for lifecycle management:
//   - SIGTERM/SIGINT: graceful shutdown (close cursors, close DB, remove lock file)
//   - SIGHUP: reload configuration from disk
func Run(ctx context.Context, cfg *ServerConfig) error {
	if err := CheckNotRoot(); err != nil {
		return err
	}

	paths := cfg.Paths
	if paths == nil {
		paths = config.DefaultPaths()
	}
	if err := EnsureSecureDirectory(paths.RuntimeDir); err != nil {
		return fmt.Errorf("failed to ensure secure runtime directory: %w", err)
	}

	// Acquire lock file to prevent double-start
	lockFile := NewLockFile(paths.LockFile())
	if err := lockFile.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lockFile.Release()

	server, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 4)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGTERM, syscall.SIGINT:
					server.logger.Info("received shutdown signal", "signal", sig)
					server.Shutdown()
					cancel()
					return

				case syscall.SIGHUP:
					server.logger.Info("received SIGHUP, reloading configuration")
					if cfg.ReloadFn != nil {
						if err := cfg.ReloadFn(); err != nil {
							server.logger.Error("failed to reload configuration", "error", err)
						} else {
							server.logger.Info("configuration reloaded successfully")
						}
					} else {
						server.logger.Debug("no reload function configured, ignoring SIGHUP")
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// Start server (blocking)
	return server.Start(ctx)
}

// IsRunning checks if the daemon is currently running.
func IsRunning() bool {
	return IsRunningWithPaths(config.DefaultPaths())
}

// IsRunningWithPaths checks if the daemon is running using the given paths.
// The lock file is the source of truth: a daemon is running when the
// lock is held and the recorded PID is alive.
func IsRunningWithPaths(paths *config.Paths) bool {
	pid, held, err := ReadHeldPID(paths.LockFile())
	if err != nil || !held || pid <= 0 {
		return false
	}
	return isProcessAlive(pid)
}

// RunningPID returns the PID of the running daemon, or 0.
func RunningPID(paths *config.Paths) int {
	pid, held, err := ReadHeldPID(paths.LockFile())
	if err != nil || !held || pid <= 0 || !isProcessAlive(pid) {
		return 0
	}
	return pid
}

// Stop stops the running daemon by sending SIGTERM.
func Stop() error {
	return StopWithPaths(config.DefaultPaths())
}

// StopWithPaths stops the running daemon using the given paths.
func StopWithPaths(paths *config.Paths) error {
	pid := RunningPID(paths)
	if pid == 0 {
		return fmt.Errorf("daemon not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	// Send SIGTERM for graceful shutdown
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	// Wait for process to exit (with timeout)
	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			// Force kill if graceful shutdown didn't work
			process.Kill()
			return nil
		case <-ticker.C:
			if !isProcessAlive(pid) {
				return nil
			}
		}
	}
}

// CleanupStale removes stale socket and lock files.
// Call this when the daemon is known to not be running.
func CleanupStale() error {
	return CleanupStaleWithPaths(config.DefaultPaths())
}

// CleanupStaleWithPaths removes stale files using the given paths.
func CleanupStaleWithPaths(paths *config.Paths) error {
	if IsRunningWithPaths(paths) {
		return fmt.Errorf("daemon is still running")
	}

	if err := os.Remove(paths.SocketFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove socket: %w", err)
	}
	if err := os.Remove(paths.LockFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// WaitForSocket waits for the daemon socket to become available.
// Returns an error if the socket doesn't become available within the timeout.
func WaitForSocket(socketPath string, timeout time.Duration) error {
	return WaitForSocketWithContext(context.Background(), socketPath, timeout)
}

// WaitForSocketWithContext waits for the socket using context for cancellation.
func WaitForSocketWithContext(ctx context.Context, socketPath string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if transport.SocketExists(socketPath) {
			return nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("socket not available after %v", timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
