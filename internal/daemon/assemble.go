package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/runger/suggestd/internal/config"
	"github.com/runger/suggestd/internal/engine"
	"github.com/runger/suggestd/internal/shortcuts"
	"github.com/runger/suggestd/internal/sources"
	"github.com/runger/suggestd/internal/suggest"
)

// BuildEngine assembles the engine from the configuration: it opens
// the shortcut repository, instantiates the configured sources and
// wires them into a manager. The caller owns the returned repository
// and must close it after the manager.
func BuildEngine(cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*engine.Manager, *shortcuts.Repository, error) {
	repo, err := shortcuts.Open(cfg.ResolveDatabasePath(paths), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open shortcut database: %w", err)
	}

	registry, err := BuildRegistry(cfg.Sources)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}

	manager := engine.NewManager(EngineParams(cfg.Engine), registry, repo, logger)
	return manager, repo, nil
}

// BuildRegistry instantiates the configured sources.
func BuildRegistry(configs []config.SourceConfig) (*suggest.Registry, error) {
	var enabled []suggest.Source
	var web suggest.Source

	for _, sc := range configs {
		src, err := buildSource(sc)
		if err != nil {
			return nil, err
		}
		enabled = append(enabled, src)
		if sc.Type == "web" {
			web = src
		}
	}
	return suggest.NewRegistry(enabled, web), nil
}

func buildSource(sc config.SourceConfig) (suggest.Source, error) {
	switch sc.Type {
	case "http", "web":
		return sources.NewHTTPSource(sources.HTTPOptions{
			Component:             suggest.ComponentID(sc.Component),
			Label:                 sc.Label,
			Icon:                  sc.Icon,
			URL:                   sc.URL,
			Threshold:             sc.Threshold,
			QueryAfterZeroResults: sc.QueryAfterZeroResults,
			WebSearch:             sc.Type == "web",
		}), nil

	case "static":
		entries := make([]sources.StaticEntry, len(sc.Entries))
		for i, e := range sc.Entries {
			entries[i] = sources.StaticEntry{
				ID:           e.ID,
				Title:        e.Title,
				Description:  e.Description,
				Keywords:     e.Keywords,
				IntentAction: e.Action,
				IntentData:   e.Data,
			}
		}
		return sources.NewStaticSource(suggest.ComponentID(sc.Component), sc.Label, sc.Icon, sc.Threshold, entries), nil

	default:
		return nil, fmt.Errorf("source %s: unknown type %q", sc.Component, sc.Type)
	}
}

// EngineParams maps the engine section of the configuration onto the
// engine's tunables.
func EngineParams(e config.EngineConfig) engine.Params {
	return engine.Params{
		NumPromoted:         e.NumPromoted,
		MaxDisplayed:        e.MaxDisplayed,
		MaxResultsPerSource: e.MaxResultsPerSource,
		PromotedDeadline:    time.Duration(e.PromotedDeadlineMs) * time.Millisecond,
		SourceTimeout:       time.Duration(e.SourceTimeoutMs) * time.Millisecond,
		PrefillDelay:        time.Duration(e.PrefillDelayMs) * time.Millisecond,
		NotifyWindow:        time.Duration(e.NotifyWindowMs) * time.Millisecond,
		TypingDelayFast:     time.Duration(e.TypingDelayFastMs) * time.Millisecond,
		TypingDelaySlow:     time.Duration(e.TypingDelaySlowMs) * time.Millisecond,
		CacheCapacity:       e.SessionCacheCapacity,
		Workers:             e.Workers,
	}
}
