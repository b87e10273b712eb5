package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/runger/suggestd/internal/backer"
	"github.com/runger/suggestd/internal/builtin"
	"github.com/runger/suggestd/internal/shortcuts"
	"github.com/runger/suggestd/internal/suggest"
)

// Session serves the queries of one user interaction with the search
// box, from the first keystroke until the last cursor closes. It keeps
// per-session state (result cache, zero-result tracking, click and
// impression bookkeeping) and reports it all when it ends.
type Session struct {
	params  Params
	sources []suggest.Source // enabled sources, promoted-first order
	web     suggest.Source
	lookup  suggest.SourceLookup
	repo    *shortcuts.Repository
	pool    Executor
	seq     *Sequencer
	cache   *SessionCache
	logger  *slog.Logger
	now     func() time.Time
	onClose func(suggest.SessionStats)

	// outstanding counts open cursors plus scheduled delayed fan-outs;
	// the session ends when it drains to zero.
	outstanding atomic.Int32

	mu          sync.Mutex
	lastQuery   string
	lastQueryAt time.Time
	prevQueryAt time.Time
	clicked     *suggest.Suggestion
	impressions []suggest.ComponentID
	pendingFire *Delayed
	prevCursor  *Cursor
}

type sessionConfig struct {
	params  Params
	sources []suggest.Source
	web     suggest.Source
	lookup  suggest.SourceLookup
	repo    *shortcuts.Repository
	pool    Executor
	seq     *Sequencer
	logger  *slog.Logger
	now     func() time.Time
	onClose func(suggest.SessionStats)
}

func newSession(cfg sessionConfig) *Session {
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	return &Session{
		params:  cfg.params,
		sources: cfg.sources,
		web:     cfg.web,
		lookup:  cfg.lookup,
		repo:    cfg.repo,
		pool:    cfg.pool,
		seq:     cfg.seq,
		cache:   NewSessionCache(cfg.params.CacheCapacity),
		logger:  cfg.logger,
		now:     now,
		onClose: cfg.onClose,
	}
}

// Query starts serving a (possibly partial) query and returns the
// cursor observing its results. The fan-out to sources may be held
// back while the user is still typing; shortcuts from history show
// immediately either way.
func (s *Session) Query(q string) *Cursor {
	s.outstanding.Add(1)
	now := s.now()

	s.mu.Lock()
	if s.pendingFire != nil {
		// The superseded query's fan-out never happened; its results
		// would be stale before they arrived.
		if s.pendingFire.Cancel() {
			s.outstanding.Add(-1)
		}
		s.pendingFire = nil
	}
	delay := s.typingDelayLocked(now)
	s.lastQuery = q
	prevCursor := s.prevCursor
	s.mu.Unlock()

	shortcutRows, orphanRows := s.loadShortcuts(q, now)
	toQuery := s.sourcesToQuery(q)

	promoted := make(map[suggest.ComponentID]bool, s.params.NumPromoted)
	for i, src := range toQuery {
		if i >= s.params.NumPromoted {
			break
		}
		promoted[src.ComponentID()] = true
	}

	factory := builtin.NewFactory(q)
	b, err := backer.New(backer.Config{
		Shortcuts:    shortcutRows,
		Sources:      toQuery,
		Promoted:     promoted,
		WebSource:    s.web,
		GoToWebsite:  factory.GoToWebsite(),
		SearchTheWeb: factory.SearchTheWeb(),
		MaxPromoted:  s.params.NumPromoted,
		Deadline:     s.params.PromotedDeadline,
		Factory:      factory,
		Now:          s.now,
	})
	if err != nil {
		// Unreachable: the promoted set is capped at NumPromoted above.
		s.logger.Error("failed to assemble backer", "query", q, "error", err)
	}

	// Replay what earlier queries of this session already learned, and
	// fan out only to the sources with no cached answer.
	cached := s.cache.SourceResults(q)
	var uncachedPromoted, uncachedAdditional []suggest.Source
	for i, src := range toQuery {
		if cached.Contains(src.ComponentID()) {
			continue
		}
		if i < s.params.NumPromoted {
			uncachedPromoted = append(uncachedPromoted, src)
		} else {
			uncachedAdditional = append(uncachedAdditional, src)
		}
	}
	for _, res := range cached.All() {
		b.AddCachedSourceResult(s.lookup.ByComponent(res.Source), res, promoted[res.Source])
	}

	refreshRows := shortcutRows
	if len(orphanRows) > 0 {
		refreshRows = append(append([]suggest.Suggestion{}, shortcutRows...), orphanRows...)
	}

	cursor := newCursor(q, b, s.seq, s.params.NotifyWindow, s.now)
	mux := newAsyncMux(asyncMuxConfig{
		query:        q,
		cache:        s.cache,
		backer:       b,
		lookup:       s.lookup,
		repo:         s.repo,
		logger:       s.logger,
		pool:         s.pool,
		shortcutRows: refreshRows,
		promoted:     uncachedPromoted,
		additional:   uncachedAdditional,
		maxDisplayed: s.params.MaxDisplayed,
		maxResults:   s.params.MaxResultsPerSource,
		queryLimit:   s.params.MaxResultsPerSource,
		timeout:      s.params.SourceTimeout,
	})
	mux.notify = cursor.OnNewResults
	cursor.SetListener(&sessionCursorListener{session: s, mux: mux})

	fire := func() {
		mux.sendOffShortcutRefreshers()
		mux.sendOffPromotedQueries()
		// A wake-up at the deadline repaints even if no promoted source
		// ever answers, so the more section still opens.
		s.seq.PostDelayed(cursor.OnNewResults, s.params.PromotedDeadline)
	}

	if delay > 0 {
		s.outstanding.Add(1)
		handle := s.seq.PostDelayed(func() {
			fire()
			s.release()
		}, delay)
		s.mu.Lock()
		s.pendingFire = handle
		s.mu.Unlock()
	} else {
		fire()
	}

	// With nothing of its own to show yet, the new cursor borrows the
	// previous query's rows instead of flashing an empty list. A
	// shortcut or cached result on screen is never replaced by
	// borrowed rows. The delayed notify repaints once this query has
	// something of its own.
	if prevCursor != nil && len(shortcutRows) == 0 && len(cached.All()) == 0 && !mux.anyReported() {
		if prev := prevCursor.Frame().Items; len(prev) > 0 {
			cursor.Prefill(prev)
			s.seq.PostDelayed(cursor.OnNewResults, s.params.PrefillDelay)
		}
	}

	s.mu.Lock()
	s.prevCursor = cursor
	s.mu.Unlock()
	return cursor
}

// typingDelayLocked decides how long to hold the fan-out back. Fast
// consecutive keystrokes mean the user is mid-word; querying on every
// one wastes source work on prefixes nobody wants.
func (s *Session) typingDelayLocked(now time.Time) time.Duration {
	var delay time.Duration
	switch {
	case !s.prevQueryAt.IsZero() && now.Sub(s.prevQueryAt)/2 < s.params.TypingDelayFast:
		delay = s.params.TypingDelayFast
	case !s.lastQueryAt.IsZero() && now.Sub(s.lastQueryAt) < s.params.TypingDelaySlow:
		delay = s.params.TypingDelaySlow
	}
	s.prevQueryAt = s.lastQueryAt
	s.lastQueryAt = now
	return delay
}

// loadShortcuts pulls ranked history rows for the query. Rows whose
// source is no longer registered come back separately; they are not
// displayed, but the refresh pass retires them from the repository.
// Repository trouble costs the shortcuts, not the query.
func (s *Session) loadShortcuts(q string, now time.Time) (kept, orphaned []suggest.Suggestion) {
	rows, err := s.repo.ShortcutsForQuery(context.Background(), q, s.params.MaxDisplayed, now)
	if err != nil {
		s.logger.Warn("failed to load shortcuts", "query", q, "error", err)
		return nil, nil
	}
	for _, row := range rows {
		if s.lookup.ByComponent(row.Source) != nil {
			kept = append(kept, row)
		} else {
			orphaned = append(orphaned, row)
		}
	}
	return kept, orphaned
}

// sourcesToQuery filters the session's sources down to the ones worth
// asking about q: long enough for their threshold, and not already
// known to have nothing for a shorter prefix.
func (s *Session) sourcesToQuery(q string) []suggest.Source {
	length := utf8.RuneCountInString(q)
	var out []suggest.Source
	for _, src := range s.sources {
		if length < src.QueryThreshold() {
			continue
		}
		if !src.QueryAfterZeroResults() &&
			s.cache.HasReportedZeroResultsForPrefix(q, src.ComponentID()) {
			continue
		}
		out = append(out, src)
	}
	return out
}

// release drops one outstanding unit; the last one out closes the
// session.
func (s *Session) release() {
	if s.outstanding.Add(-1) == 0 {
		s.finish()
	}
}

func (s *Session) finish() {
	s.mu.Lock()
	stats := suggest.NewSessionStats(s.lastQuery, s.clicked, s.impressions)
	onClose := s.onClose
	s.mu.Unlock()
	if onClose != nil {
		onClose(stats)
	}
}

// recordImpressions notes which sources the user actually saw results
// from. Corpus rows count for their target source once its query
// started; rows from unregistered sources are ignored.
func (s *Session) recordImpressions(viewed []suggest.Suggestion, b *backer.Backer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range viewed {
		if row.IntentAction == suggest.ActionChangeSource {
			id := suggest.ComponentID(row.IntentData)
			if b.SourceStarted(id) {
				s.impressions = append(s.impressions, id)
			}
			continue
		}
		if s.lookup.ByComponent(row.Source) != nil {
			s.impressions = append(s.impressions, row.Source)
		}
	}
}

// sessionCursorListener routes one cursor's interaction events back to
// its session and query context.
type sessionCursorListener struct {
	session *Session
	mux     *asyncMux
}

func (l *sessionCursorListener) OnItemClicked(sg suggest.Suggestion) {
	clicked := sg
	l.session.mu.Lock()
	l.session.clicked = &clicked
	l.session.mu.Unlock()
}

func (l *sessionCursorListener) OnMoreVisible() {
	l.mux.sendOffAdditionalQueries()
}

func (l *sessionCursorListener) OnClosed(viewed []suggest.Suggestion) {
	l.mux.cancel()
	l.session.recordImpressions(viewed, l.mux.backer)
	l.session.release()
}

var _ CursorListener = (*sessionCursorListener)(nil)
