package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runger/suggestd/internal/backer"
	"github.com/runger/suggestd/internal/shortcuts"
	"github.com/runger/suggestd/internal/suggest"
)

// asyncMux ties one query's moving parts together: it receives fan-out
// results and shortcut refreshes on worker goroutines, feeds them to
// the backer and the session cache, and pokes the cursor.
type asyncMux struct {
	query  string
	cache  *SessionCache
	backer *backer.Backer
	lookup suggest.SourceLookup
	repo   *shortcuts.Repository
	logger *slog.Logger

	// notify pokes the cursor; set before any query is sent.
	notify func()

	promotedMux   *QueryMultiplexer
	additionalMux *QueryMultiplexer
	refresher     *shortcuts.Refresher
	shortcutRows  []suggest.Suggestion

	byID     map[suggest.ComponentID]suggest.Source
	reported atomic.Int32

	mu             sync.Mutex
	promotedSent   bool
	additionalSent bool
}

type asyncMuxConfig struct {
	query        string
	cache        *SessionCache
	backer       *backer.Backer
	lookup       suggest.SourceLookup
	repo         *shortcuts.Repository
	logger       *slog.Logger
	pool         Executor
	shortcutRows []suggest.Suggestion

	// promoted and additional are the uncached sources to fan out to,
	// already split.
	promoted   []suggest.Source
	additional []suggest.Source

	// maxDisplayed caps what an additional source is asked for; the
	// promoted fan-out asks for maxResults up front.
	maxDisplayed int
	maxResults   int
	queryLimit   int
	timeout      time.Duration
}

func newAsyncMux(cfg asyncMuxConfig) *asyncMux {
	m := &asyncMux{
		query:        cfg.query,
		cache:        cfg.cache,
		backer:       cfg.backer,
		lookup:       cfg.lookup,
		repo:         cfg.repo,
		logger:       cfg.logger,
		shortcutRows: cfg.shortcutRows,
		byID:         make(map[suggest.ComponentID]suggest.Source),
	}
	for _, src := range append(append([]suggest.Source{}, cfg.promoted...), cfg.additional...) {
		m.byID[src.ComponentID()] = src
	}
	m.promotedMux = NewQueryMultiplexer(cfg.query, cfg.promoted, cfg.maxResults, cfg.queryLimit, cfg.timeout, m, cfg.pool)
	m.additionalMux = NewQueryMultiplexer(cfg.query, cfg.additional, cfg.maxDisplayed, cfg.queryLimit, cfg.timeout, m, cfg.pool)
	m.refresher = shortcuts.NewRefresher(cfg.pool, cfg.timeout, cfg.logger)
	return m
}

// sendOffShortcutRefreshers revalidates the shortcuts that have a
// refreshable id and were not already refreshed this session. A
// shortcut whose source is gone cannot be revalidated and is retired
// on the spot.
func (m *asyncMux) sendOffShortcutRefreshers() {
	for _, row := range m.shortcutRows {
		if row.ShortcutID == "" || row.ShortcutDisabled() {
			continue
		}
		if m.cache.HasShortcutBeenRefreshed(row.Source, row.ShortcutID) {
			continue
		}
		src := m.lookup.ByComponent(row.Source)
		if src == nil {
			m.OnShortcutRefreshed(row.Source, row.ShortcutID, nil)
			continue
		}
		m.refresher.Refresh(src, row.ShortcutID, m)
	}
}

// sendOffPromotedQueries starts the promoted fan-out and the deadline
// clock. Idempotent.
func (m *asyncMux) sendOffPromotedQueries() {
	m.mu.Lock()
	if m.promotedSent {
		m.mu.Unlock()
		return
	}
	m.promotedSent = true
	m.mu.Unlock()

	m.backer.ReportPromotedQueryStart()
	m.promotedMux.SendQuery()
}

// sendOffAdditionalQueries starts the non-promoted fan-out, triggered
// when the user shows interest in the more section. Idempotent.
func (m *asyncMux) sendOffAdditionalQueries() {
	m.mu.Lock()
	if m.additionalSent {
		m.mu.Unlock()
		return
	}
	m.additionalSent = true
	m.mu.Unlock()

	m.additionalMux.SendQuery()
}

// anyReported reports whether any source has answered this query yet.
// The prefill timer uses it to decide whether placeholder rows are
// still wanted.
func (m *asyncMux) anyReported() bool {
	return m.reported.Load() > 0
}

// cancel abandons all outstanding work for this query.
func (m *asyncMux) cancel() {
	m.promotedMux.Cancel()
	m.additionalMux.Cancel()
	m.refresher.Cancel()
}

// OnSourceQueryStart implements MuxReceiver.
func (m *asyncMux) OnSourceQueryStart(id suggest.ComponentID) {
	if m.backer.ReportSourceStarted(id) {
		m.notify()
	}
}

// OnSourceResult implements MuxReceiver.
func (m *asyncMux) OnSourceResult(res *suggest.Response) {
	m.reported.Add(1)
	if src := m.byID[res.Source]; src != nil {
		m.cache.ReportSourceResult(m.query, src, res)
	}
	if m.backer.AddSourceResult(res) {
		m.notify()
	}
}

// OnShortcutRefreshed implements shortcuts.RefreshReceiver: the
// repository learns the durable truth, the backer updates the row on
// screen, and the cache remembers not to refresh again.
func (m *asyncMux) OnShortcutRefreshed(source suggest.ComponentID, shortcutID string, refreshed *suggest.Suggestion) {
	m.cache.ReportRefreshedShortcut(source, shortcutID)

	if err := m.repo.RefreshShortcut(context.Background(), source, shortcutID, refreshed); err != nil {
		m.logger.Warn("failed to persist refreshed shortcut",
			"source", string(source), "shortcut_id", shortcutID, "error", err)
	}

	if m.backer.RefreshShortcut(source, shortcutID, refreshed) {
		m.notify()
	}
}

var (
	_ MuxReceiver               = (*asyncMux)(nil)
	_ shortcuts.RefreshReceiver = (*asyncMux)(nil)
)
