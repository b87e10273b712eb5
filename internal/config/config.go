package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the suggestd configuration.
type Config struct {
	Daemon  DaemonConfig   `yaml:"daemon"`
	Engine  EngineConfig   `yaml:"engine"`
	Sources []SourceConfig `yaml:"sources"`
	Picker  PickerConfig   `yaml:"picker"`
}

// DaemonConfig holds daemon-related settings.
type DaemonConfig struct {
	IdleTimeoutMins int    `yaml:"idle_timeout_mins"` // Auto-shutdown after idle (0 = never)
	SocketPath      string `yaml:"socket_path"`       // Unix socket path (overrides default)
	LogLevel        string `yaml:"log_level"`         // debug, info, warn, error
	LogFile         string `yaml:"log_file"`          // Log file path (overrides default)
	DatabasePath    string `yaml:"database_path"`     // Shortcut database path (overrides default)
}

// EngineConfig holds the aggregation engine tunables.
type EngineConfig struct {
	NumPromoted          int `yaml:"num_promoted"`           // Sources competing for promoted slots
	MaxDisplayed         int `yaml:"max_displayed"`          // Max shortcut rows per query
	MaxResultsPerSource  int `yaml:"max_results_per_source"` // Per-source result cap
	PromotedDeadlineMs   int `yaml:"promoted_deadline_ms"`   // Promoted slot claim deadline
	SourceTimeoutMs      int `yaml:"source_timeout_ms"`      // Hard per-source query timeout
	PrefillDelayMs       int `yaml:"prefill_delay_ms"`       // Wait before showing previous rows
	NotifyWindowMs       int `yaml:"notify_window_ms"`       // Cursor repaint throttle window
	TypingDelayFastMs    int `yaml:"typing_delay_fast_ms"`   // Hold-back for sustained fast typing
	TypingDelaySlowMs    int `yaml:"typing_delay_slow_ms"`   // Hold-back for one quick keystroke
	SessionCacheCapacity int `yaml:"session_cache_capacity"` // Cached query prefixes per session
	Workers              int `yaml:"workers"`                // Query worker pool size
}

// SourceConfig defines one suggestion source.
type SourceConfig struct {
	// Component identifies the source; must be unique.
	Component string `yaml:"component"`

	// Type is http, web or static. web is an http suggest endpoint
	// whose completions become web search intents; at most one source
	// may be the web source.
	Type string `yaml:"type"`

	Label string `yaml:"label"`
	Icon  string `yaml:"icon"`

	// URL is the suggest endpoint template for http/web sources. A
	// {query} placeholder is replaced with the escaped query.
	URL string `yaml:"url"`

	Threshold             int  `yaml:"threshold"`
	QueryAfterZeroResults bool `yaml:"query_after_zero_results"`

	// Entries is the fixed suggestion list of a static source.
	Entries []StaticEntryConfig `yaml:"entries"`
}

// StaticEntryConfig is one entry of a static source.
type StaticEntryConfig struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
	Action      string   `yaml:"action"`
	Data        string   `yaml:"data"`
}

// PickerConfig holds interactive picker settings.
type PickerConfig struct {
	// Opener is the command template used to launch a clicked result;
	// {url} is replaced with the intent data.
	Opener string `yaml:"opener"`

	// SearchURL is the web search page template; {query} is replaced
	// with the escaped query when a web search row is launched.
	SearchURL string `yaml:"search_url"`

	// MaxVisibleRows caps the rows the picker renders at once.
	MaxVisibleRows int `yaml:"max_visible_rows"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			IdleTimeoutMins: 0,  // Never timeout
			SocketPath:      "", // Use default from paths
			LogLevel:        "info",
			LogFile:         "", // Use default from paths
			DatabasePath:    "", // Use default from paths
		},
		Engine: DefaultEngineConfig(),
		Picker: PickerConfig{
			Opener:         defaultOpener(),
			SearchURL:      "https://duckduckgo.com/?q={query}",
			MaxVisibleRows: 12,
		},
	}
}

// DefaultEngineConfig returns the stock engine tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		NumPromoted:          4,
		MaxDisplayed:         7,
		MaxResultsPerSource:  58,
		PromotedDeadlineMs:   3500,
		SourceTimeoutMs:      10000,
		PrefillDelayMs:       400,
		NotifyWindowMs:       100,
		TypingDelayFastMs:    800,
		TypingDelaySlowMs:    500,
		SessionCacheCapacity: 32,
		Workers:              8,
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil // Return defaults if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	paths := DefaultPaths()
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Daemon.IdleTimeoutMins < 0 {
		return errors.New("daemon.idle_timeout_mins must be >= 0")
	}

	if !isValidLogLevel(c.Daemon.LogLevel) {
		return fmt.Errorf("daemon.log_level must be debug, info, warn, or error (got: %s)", c.Daemon.LogLevel)
	}

	seen := make(map[string]bool, len(c.Sources))
	webSources := 0
	for i, src := range c.Sources {
		if src.Component == "" {
			return fmt.Errorf("sources[%d]: component is required", i)
		}
		if seen[src.Component] {
			return fmt.Errorf("sources[%d]: duplicate component %q", i, src.Component)
		}
		seen[src.Component] = true

		switch src.Type {
		case "http", "web":
			if src.URL == "" {
				return fmt.Errorf("sources[%d] (%s): url is required for %s sources", i, src.Component, src.Type)
			}
			if src.Type == "web" {
				webSources++
			}
		case "static":
			for j, entry := range src.Entries {
				if entry.ID == "" || entry.Title == "" {
					return fmt.Errorf("sources[%d] (%s): entries[%d] needs id and title", i, src.Component, j)
				}
			}
		default:
			return fmt.Errorf("sources[%d] (%s): type must be http, web, or static (got: %s)", i, src.Component, src.Type)
		}

		if src.Threshold < 0 {
			return fmt.Errorf("sources[%d] (%s): threshold must be >= 0", i, src.Component)
		}
	}
	if webSources > 1 {
		return errors.New("at most one source may have type web")
	}

	// Engine tunables never prevent startup; out-of-range values fall
	// back to defaults.
	c.Engine.ValidateAndFix()

	if c.Picker.MaxVisibleRows < 1 {
		c.Picker.MaxVisibleRows = DefaultConfig().Picker.MaxVisibleRows
	}

	return nil
}

// ValidationWarning represents a config validation warning.
type ValidationWarning struct {
	Field   string
	Message string
}

// ValidateAndFix validates the engine tunables. Invalid values are
// replaced with defaults. Returns a list of warnings for diagnostics.
func (e *EngineConfig) ValidateAndFix() []ValidationWarning {
	defaults := DefaultEngineConfig()
	var warnings []ValidationWarning

	fields := []struct {
		name string
		val  *int
		def  int
	}{
		{"num_promoted", &e.NumPromoted, defaults.NumPromoted},
		{"max_displayed", &e.MaxDisplayed, defaults.MaxDisplayed},
		{"max_results_per_source", &e.MaxResultsPerSource, defaults.MaxResultsPerSource},
		{"promoted_deadline_ms", &e.PromotedDeadlineMs, defaults.PromotedDeadlineMs},
		{"source_timeout_ms", &e.SourceTimeoutMs, defaults.SourceTimeoutMs},
		{"prefill_delay_ms", &e.PrefillDelayMs, defaults.PrefillDelayMs},
		{"notify_window_ms", &e.NotifyWindowMs, defaults.NotifyWindowMs},
		{"typing_delay_fast_ms", &e.TypingDelayFastMs, defaults.TypingDelayFastMs},
		{"typing_delay_slow_ms", &e.TypingDelaySlowMs, defaults.TypingDelaySlowMs},
		{"session_cache_capacity", &e.SessionCacheCapacity, defaults.SessionCacheCapacity},
		{"workers", &e.Workers, defaults.Workers},
	}
	for _, f := range fields {
		if *f.val < 1 {
			warnings = append(warnings, ValidationWarning{
				Field:   f.name,
				Message: fmt.Sprintf("must be >= 1, got %d; falling back to default %d", *f.val, f.def),
			})
			*f.val = f.def
		}
	}
	return warnings
}

// PromotedDeadline returns the deadline as a duration.
func (e EngineConfig) PromotedDeadline() time.Duration {
	return time.Duration(e.PromotedDeadlineMs) * time.Millisecond
}

// SourceTimeout returns the per-source timeout as a duration.
func (e EngineConfig) SourceTimeout() time.Duration {
	return time.Duration(e.SourceTimeoutMs) * time.Millisecond
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// ApplyEnvOverrides applies environment variable overrides to the
// config. Environment variables override config file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SUGGESTD_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Daemon.LogLevel = "debug"
		}
	}
	if v := os.Getenv("SUGGESTD_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Daemon.LogLevel = v
		}
	}
	if v := os.Getenv("SUGGESTD_SOCKET_PATH"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("SUGGESTD_DB_PATH"); v != "" {
		c.Daemon.DatabasePath = v
	}
}

// ResolveSocketPath returns the configured socket path or the default.
func (c *Config) ResolveSocketPath(paths *Paths) string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return paths.SocketFile()
}

// ResolveDatabasePath returns the configured database path or the
// default.
func (c *Config) ResolveDatabasePath(paths *Paths) string {
	if c.Daemon.DatabasePath != "" {
		return c.Daemon.DatabasePath
	}
	return paths.DatabaseFile()
}

// defaultOpener picks the platform URL opener.
func defaultOpener() string {
	switch {
	case fileExists("/usr/bin/xdg-open"):
		return "xdg-open {url}"
	case fileExists("/usr/bin/open"):
		return "open {url}"
	default:
		return "xdg-open {url}"
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
