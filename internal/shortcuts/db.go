// Package shortcuts persists click history and computes shortcut and
// source-ranking queries on top of SQLite. It also hosts the refresher
// that revalidates shortcuts against their sources.
package shortcuts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// schemaVersion identifies the on-disk schema. Shortcut data is a
	// cache of user behavior, so any version mismatch (up or down)
	// drops and recreates the tables instead of migrating.
	schemaVersion = 1

	// walCheckpointInterval is how often we checkpoint the WAL file
	// to prevent unbounded growth during long-running daemon sessions.
	walCheckpointInterval = 5 * time.Minute
)

const (
	// MaxStatAge is how long a click keeps contributing to shortcut
	// ranking. Older clicklog rows are purged on insert.
	MaxStatAge = 7 * 24 * time.Hour

	// MaxSourceEventAge is how long impression/click events keep
	// contributing to source ranking.
	MaxSourceEventAge = 30 * 24 * time.Hour

	// DefaultPriorClicks and DefaultPriorImpressions seed every
	// source's click-through rate so that sparsely used sources are
	// not ranked on noise.
	DefaultPriorClicks      = 3
	DefaultPriorImpressions = 30
)

// Repository stores clicked suggestions and click/impression events,
// and serves shortcut and source-ranking queries. All methods are safe
// for concurrent use; SQLite serializes writers underneath.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger

	stopCh    chan struct{} // signals background goroutines to stop
	stoppedCh chan struct{} // signals background goroutines have stopped
	closeOnce sync.Once     // ensures Close() is idempotent
	closeErr  error         // stores the error from Close()
}

// DefaultDBPath returns the default database path
// (~/.local/share/suggestd/shortcuts.db, following XDG).
func DefaultDBPath() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "suggestd", "shortcuts.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "suggestd", "shortcuts.db"), nil
}

// Open opens (creating if necessary) the shortcut database at dbPath.
// If dbPath is empty the default path is used. The database is opened
// with WAL mode enabled for better concurrency.
func Open(dbPath string, logger *slog.Logger) (*Repository, error) {
	if dbPath == "" {
		var err error
		dbPath, err = DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pragmas in DSN
	// modernc.org/sqlite uses _pragma=name(value) syntax
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(1) // SQLite handles concurrency better with single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Don't close connections

	// Ping to establish connection and ensure pragmas are applied
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{
		db:        db,
		logger:    logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	if err := repo.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}

	// Start background WAL checkpointing
	go repo.walCheckpointLoop()

	return repo, nil
}

// Close closes the database connection.
// It is safe to call Close multiple times.
func (r *Repository) Close() error {
	r.closeOnce.Do(func() {
		if r.stopCh != nil {
			close(r.stopCh)
			<-r.stoppedCh // wait for goroutine to finish
		}

		if r.db != nil {
			// Final checkpoint before closing to merge WAL into main db
			_, _ = r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			r.closeErr = r.db.Close()
		}
	})
	return r.closeErr
}

// Delete removes the database files at dbPath, including the WAL
// sidecars. Used by tests and by `suggestd history clear --hard`.
func Delete(dbPath string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", dbPath+suffix, err)
		}
	}
	return nil
}

// walCheckpointLoop periodically checkpoints the WAL file to prevent
// unbounded growth during long-running daemon sessions.
func (r *Repository) walCheckpointLoop() {
	defer close(r.stoppedCh)

	ticker := time.NewTicker(walCheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			// TRUNCATE mode: checkpoint and truncate WAL to zero size
			if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				r.logger.Warn("wal checkpoint failed", "error", err)
			}
		}
	}
}

// migrate brings the schema to schemaVersion. Shortcut history is
// disposable, so a version mismatch in either direction wipes the
// tables and recreates them.
func (r *Repository) migrate(ctx context.Context) error {
	currentVersion := 0
	row := r.db.QueryRowContext(ctx, `
		SELECT version FROM schema_meta ORDER BY version DESC LIMIT 1
	`)
	if err := row.Scan(&currentVersion); err != nil {
		if err == sql.ErrNoRows || isTableNotFoundError(err) {
			currentVersion = 0
		} else {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
	}

	if currentVersion == schemaVersion {
		return nil
	}

	if currentVersion != 0 {
		r.logger.Info("shortcut schema version changed, dropping history",
			"have", currentVersion, "want", schemaVersion)
		if _, err := r.db.ExecContext(ctx, dropSchema); err != nil {
			return fmt.Errorf("failed to drop old schema: %w", err)
		}
	}

	if _, err := r.db.ExecContext(ctx, createSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO schema_meta (version, applied_at_unix_ms)
		VALUES (?, ?)
	`, schemaVersion, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return nil
}

// isTableNotFoundError checks if the error indicates a missing table.
func isTableNotFoundError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

const dropSchema = `
DROP TRIGGER IF EXISTS clicklog_insert;
DROP TRIGGER IF EXISTS shortcuts_delete;
DROP TABLE IF EXISTS clicklog;
DROP TABLE IF EXISTS shortcuts;
DROP TABLE IF EXISTS sourceeventlog;
DROP TABLE IF EXISTS sourcetotals;
DROP TABLE IF EXISTS schema_meta;
`

var createSchema = fmt.Sprintf(`
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_meta (
  version INTEGER PRIMARY KEY,
  applied_at_unix_ms INTEGER NOT NULL
);

-- One row per distinct clicked suggestion, keyed by intent identity.
CREATE TABLE IF NOT EXISTS shortcuts (
  intent_key TEXT NOT NULL PRIMARY KEY,
  source TEXT NOT NULL,
  format TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  icon1 TEXT NOT NULL DEFAULT '',
  icon2 TEXT NOT NULL DEFAULT '',
  intent_action TEXT NOT NULL DEFAULT '',
  intent_data TEXT NOT NULL DEFAULT '',
  intent_query TEXT NOT NULL DEFAULT '',
  intent_extradata TEXT NOT NULL DEFAULT '',
  intent_component TEXT NOT NULL DEFAULT '',
  shortcut_id TEXT NOT NULL DEFAULT '',
  spinner_while_refreshing INTEGER NOT NULL DEFAULT 0
);

-- One row per click, joined against shortcuts for ranking.
CREATE TABLE IF NOT EXISTS clicklog (
  _id INTEGER PRIMARY KEY AUTOINCREMENT,
  intent_key TEXT NOT NULL REFERENCES shortcuts(intent_key),
  query TEXT NOT NULL,
  hit_time INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS clicklog_query ON clicklog(query);
CREATE INDEX IF NOT EXISTS clicklog_hit_time ON clicklog(hit_time);

-- Every insert purges clicks too old to matter for ranking.
CREATE TRIGGER IF NOT EXISTS clicklog_insert AFTER INSERT ON clicklog
BEGIN
  DELETE FROM clicklog WHERE hit_time < NEW.hit_time - %d;
END;

-- Deleting a shortcut takes its click history with it.
CREATE TRIGGER IF NOT EXISTS shortcuts_delete AFTER DELETE ON shortcuts
BEGIN
  DELETE FROM clicklog WHERE intent_key = OLD.intent_key;
END;

-- One row per (source, session): impressions and whether it got the click.
CREATE TABLE IF NOT EXISTS sourceeventlog (
  _id INTEGER PRIMARY KEY AUTOINCREMENT,
  component TEXT NOT NULL,
  time INTEGER NOT NULL,
  click_count INTEGER NOT NULL,
  impression_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS sourceeventlog_component ON sourceeventlog(component);

-- Denormalized per-source totals, recomputed after each event batch.
CREATE TABLE IF NOT EXISTS sourcetotals (
  component TEXT NOT NULL PRIMARY KEY,
  total_clicks INTEGER NOT NULL,
  total_impressions INTEGER NOT NULL
);
`, MaxStatAge.Milliseconds())
