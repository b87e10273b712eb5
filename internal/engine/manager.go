package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/runger/suggestd/internal/shortcuts"
	"github.com/runger/suggestd/internal/suggest"
)

// Manager owns the engine's long-lived machinery (worker pool,
// sequencer, repository handle) and hands out sessions: one session
// serves one burst of interaction, and its statistics are written back
// when it ends.
type Manager struct {
	params   Params
	registry *suggest.Registry
	repo     *shortcuts.Repository
	logger   *slog.Logger
	pool     *Pool
	seq      *Sequencer
	now      func() time.Time

	mu      sync.Mutex
	session *Session
	closed  bool
}

// NewManager builds a manager over the given sources and repository.
func NewManager(params Params, registry *suggest.Registry, repo *shortcuts.Repository, logger *slog.Logger) *Manager {
	params = params.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		params:   params,
		registry: registry,
		repo:     repo,
		logger:   logger,
		pool:     NewPool(params.Workers),
		seq:      NewSequencer(),
		now:      time.Now,
	}
}

// Query routes the query to the current session, starting a new one if
// the previous session has ended (or none exists yet).
func (m *Manager) Query(q string) *Cursor {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	if m.session == nil {
		m.session = m.startSessionLocked()
	}
	session := m.session
	m.mu.Unlock()

	return session.Query(q)
}

// SourceIDs returns the component ids of the enabled sources, in
// configured order.
func (m *Manager) SourceIDs() []suggest.ComponentID {
	enabled := m.registry.Enabled()
	ids := make([]suggest.ComponentID, len(enabled))
	for i, s := range enabled {
		ids[i] = s.ComponentID()
	}
	return ids
}

// Close shuts the engine down. Open cursors stop updating; their
// session statistics are lost.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.session = nil
	m.mu.Unlock()

	m.pool.Close()
	m.seq.Close()
}

func (m *Manager) startSessionLocked() *Session {
	ranking, err := m.repo.SourceRanking(context.Background())
	if err != nil {
		m.logger.Warn("failed to load source ranking", "error", err)
	}
	ordered := orderSources(m.registry.Enabled(), m.registry.Web(), ranking, m.params.NumPromoted)

	// Warm the web source up so the first real query does not pay its
	// connection setup.
	if web := m.registry.Web(); web != nil {
		timeout := m.params.SourceTimeout
		m.pool.Execute(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			_, _ = web.Suggest(ctx, "", 1, 1)
		})
	}

	m.logger.Debug("session started", "sources", len(ordered))
	return newSession(sessionConfig{
		params:  m.params,
		sources: ordered,
		web:     m.registry.Web(),
		lookup:  m.registry,
		repo:    m.repo,
		pool:    m.pool,
		seq:     m.seq,
		logger:  m.logger,
		now:     m.now,
		onClose: m.sessionClosed,
	})
}

// sessionClosed retires the session and persists its statistics off
// the caller's goroutine.
func (m *Manager) sessionClosed(stats suggest.SessionStats) {
	m.mu.Lock()
	m.session = nil
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	m.logger.Debug("session closed",
		"query", stats.Query, "clicked", stats.Clicked != nil,
		"impressions", len(stats.SourceImpressions))
	m.pool.Execute(func() {
		if err := m.repo.ReportStats(context.Background(), stats, m.now()); err != nil {
			m.logger.Warn("failed to persist session stats", "error", err)
		}
	})
}

// orderSources decides the fan-out order, which doubles as promotion
// priority: the web source first, then the best-ranked sources until
// the promoted slots are spoken for, then the sources that have no
// ranking yet (new sources deserve a chance at promotion), then the
// rest of the ranking.
func orderSources(enabled []suggest.Source, web suggest.Source, ranking []suggest.ComponentID, numPromoted int) []suggest.Source {
	byID := make(map[suggest.ComponentID]suggest.Source, len(enabled))
	ranked := make(map[suggest.ComponentID]bool, len(ranking))
	for _, src := range enabled {
		byID[src.ComponentID()] = src
	}
	for _, id := range ranking {
		ranked[id] = true
	}

	added := make(map[suggest.ComponentID]bool, len(enabled)+1)
	var out []suggest.Source
	add := func(src suggest.Source) {
		if src == nil || added[src.ComponentID()] {
			return
		}
		added[src.ComponentID()] = true
		out = append(out, src)
	}

	add(web)
	for _, id := range ranking {
		if len(out) >= numPromoted {
			break
		}
		add(byID[id])
	}
	for _, src := range enabled {
		if !ranked[src.ComponentID()] {
			add(src)
		}
	}
	for _, id := range ranking {
		add(byID[id])
	}
	return out
}
