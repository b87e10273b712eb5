package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/suggestd/internal/config"
	"github.com/runger/suggestd/internal/daemon"
	"github.com/runger/suggestd/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon in the foreground",
	Long: `Run the suggestion daemon in the foreground, logging to stderr
(or to daemon.log_file when configured). Use "suggestd daemon start" to
run it in the background instead.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	logger, closeLog, err := buildLogger(cfg, paths)
	if err != nil {
		return err
	}
	defer closeLog()

	manager, repo, err := daemon.BuildEngine(cfg, paths, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	serverCfg := &daemon.ServerConfig{
		Manager:     manager,
		SocketPath:  cfg.ResolveSocketPath(paths),
		Paths:       paths,
		Logger:      logger,
		IdleTimeout: time.Duration(cfg.Daemon.IdleTimeoutMins) * time.Minute,
		// Source and engine changes need a restart; the reload only
		// reports whether the file on disk is still loadable.
		ReloadFn: func() error {
			reloaded, err := config.Load()
			if err != nil {
				return err
			}
			if len(reloaded.Sources) != len(cfg.Sources) {
				logger.Warn("source list changed on disk, restart to apply")
			}
			return nil
		},
	}

	return daemon.Run(context.Background(), serverCfg)
}

// buildLogger creates the daemon logger from the config, writing to the
// configured log file or stderr.
func buildLogger(cfg *config.Config, paths *config.Paths) (*slog.Logger, func(), error) {
	var output io.Writer = os.Stderr
	closeLog := func() {}

	if cfg.Daemon.LogFile != "" {
		f, err := os.OpenFile(cfg.Daemon.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
		closeLog = func() { f.Close() }
	}

	logger := log.New(&log.Config{
		Output: output,
		Level:  parseLogLevel(cfg.Daemon.LogLevel),
		Debug:  os.Getenv("SUGGESTD_DEBUG") == "1",
	})
	return logger, closeLog, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
