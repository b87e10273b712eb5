// Package backer aggregates shortcut and source results for one query
// into the ordered list a search box displays. It owns the promoted
// slot accounting, the round-robin mixing, the "more results" section
// and the pin-to-bottom row.
package backer

import (
	"errors"
	"sync"
	"time"

	"github.com/runger/suggestd/internal/suggest"
)

// SourceStat describes one source's standing in the "more results"
// section: whether it has answered yet and how many of its results are
// not already displayed in the promoted list.
type SourceStat struct {
	Source   suggest.ComponentID
	Label    string
	Icon     string
	Promoted bool

	// Responded is false while the source has not reported for this
	// query; the UI shows a progress hint for it.
	Responded bool

	// NumResults counts results not already shown in the promoted
	// section. QueryLimit is the matching remainder of the advisory
	// cap, so NumResults == QueryLimit reads as "NumResults or more".
	NumResults int
	QueryLimit int
}

// EntryFactory builds the synthetic rows the backer appends below the
// promoted section. Implemented by the builtin package; tests supply
// their own.
type EntryFactory interface {
	// MoreEntry is the expandable "more results" row. pending is true
	// while any source is still being queried.
	MoreEntry(expanded, pending bool, stats []SourceStat) suggest.Suggestion

	// CorpusEntry is one row of the expanded more section, letting the
	// user jump to a single source's corpus.
	CorpusEntry(stat SourceStat, pending bool) suggest.Suggestion
}

// Config assembles a Backer for one query.
type Config struct {
	// Shortcuts are the history rows shown first, already ranked and
	// truncated by the caller.
	Shortcuts []suggest.Suggestion

	// Sources are all sources being queried, in fan-out order.
	Sources []suggest.Source

	// Promoted names the sources competing for the promoted slots.
	// Must not exceed MaxPromoted.
	Promoted map[suggest.ComponentID]bool

	// WebSource, when set, is the source whose trailing pin-to-bottom
	// row is extracted and always displayed last.
	WebSource suggest.Source

	// GoToWebsite and SearchTheWeb are the built-in navigation rows;
	// either may be nil.
	GoToWebsite  *suggest.Suggestion
	SearchTheWeb *suggest.Suggestion

	// MaxPromoted is the number of list slots shortcuts and promoted
	// source results compete for.
	MaxPromoted int

	// Deadline is how long after ReportPromotedQueryStart promoted
	// sources may claim slots. Late reporters fall into the more
	// section.
	Deadline time.Duration

	Factory EntryFactory

	// Now is the clock, injectable by tests. Defaults to time.Now.
	Now func() time.Time
}

// errTooManyPromoted is returned when more sources are promoted than
// there are slots to promote them into.
var errTooManyPromoted = errors.New("more promoted sources than promoted slots")

// reportedResult is one source's response, in arrival order.
type reportedResult struct {
	response *suggest.Response
}

// Backer collects results for a single query as they arrive and serves
// consistent display snapshots. Safe for concurrent use: sources report
// from worker goroutines while the UI snapshots from its own.
type Backer struct {
	mu sync.Mutex

	shortcuts    []suggest.Suggestion
	sources      []suggest.Source
	promoted     map[suggest.ComponentID]bool
	webComponent suggest.ComponentID
	goToWebsite  *suggest.Suggestion
	searchTheWeb *suggest.Suggestion
	maxPromoted  int
	deadline     time.Duration
	factory      EntryFactory
	now          func() time.Time

	reportedOrder          []suggest.ComponentID
	reported               map[suggest.ComponentID]*reportedResult
	reportedBeforeDeadline map[suggest.ComponentID]bool
	started                map[suggest.ComponentID]bool
	pinToBottom            *suggest.Suggestion

	promotedQueryStarted bool
	promotedQueryStart   time.Time

	// moreIndex is the position of the more row in the latest
	// snapshot, or -1 when no more row was emitted.
	moreIndex int
}

// New builds a backer for one query. It fails only when the promoted
// set cannot fit the promoted slots.
func New(cfg Config) (*Backer, error) {
	if len(cfg.Promoted) > cfg.MaxPromoted {
		return nil, errTooManyPromoted
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	b := &Backer{
		shortcuts:              cfg.Shortcuts,
		sources:                cfg.Sources,
		promoted:               make(map[suggest.ComponentID]bool, len(cfg.Promoted)),
		goToWebsite:            cfg.GoToWebsite,
		searchTheWeb:           cfg.SearchTheWeb,
		maxPromoted:            cfg.MaxPromoted,
		deadline:               cfg.Deadline,
		factory:                cfg.Factory,
		now:                    now,
		reported:               make(map[suggest.ComponentID]*reportedResult),
		reportedBeforeDeadline: make(map[suggest.ComponentID]bool),
		started:                make(map[suggest.ComponentID]bool),
		moreIndex:              -1,
	}
	for id := range cfg.Promoted {
		b.promoted[id] = true
	}
	if cfg.WebSource != nil {
		b.webComponent = cfg.WebSource.ComponentID()
	}
	return b, nil
}

// ReportPromotedQueryStart starts the promoted deadline clock. Called
// once when the promoted fan-out is sent; reports arriving more than
// the deadline later no longer claim promoted slots.
func (b *Backer) ReportPromotedQueryStart() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.promotedQueryStarted {
		b.promotedQueryStarted = true
		b.promotedQueryStart = b.now()
	}
}

// ReportSourceStarted records that a source's query task began running.
// Returns true when this changes what a snapshot would show.
func (b *Backer) ReportSourceStarted(id suggest.ComponentID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started[id] {
		return false
	}
	b.started[id] = true
	return true
}

// SourceStarted reports whether the source's query task ever started.
func (b *Backer) SourceStarted(id suggest.ComponentID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started[id]
}

// AddSourceResult records a source's response. The web source's
// trailing pin-to-bottom row, if present, is detached and held for the
// bottom of every snapshot. Returns true when the visible list may
// have changed.
func (b *Backer) AddSourceResult(res *suggest.Response) bool {
	if res == nil {
		return false
	}
	res.Normalize()

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(res)
}

// AddCachedSourceResult replays a response cached from an earlier
// session query. The source is registered if the fan-out does not
// already include it, claiming a promoted slot when asked and one is
// free.
func (b *Backer) AddCachedSourceResult(src suggest.Source, res *suggest.Response, promoted bool) bool {
	if src == nil || res == nil {
		return false
	}
	res.Normalize()

	b.mu.Lock()
	defer b.mu.Unlock()

	known := false
	for _, s := range b.sources {
		if s.ComponentID() == src.ComponentID() {
			known = true
			break
		}
	}
	if !known {
		b.sources = append(b.sources, src)
	}
	if promoted && !b.promoted[src.ComponentID()] && len(b.promoted) < b.maxPromoted {
		b.promoted[src.ComponentID()] = true
	}
	return b.addLocked(res)
}

func (b *Backer) addLocked(res *suggest.Response) bool {
	id := res.Source
	if _, dup := b.reported[id]; dup {
		return false
	}

	// Detach the web source's pinned row so it can ride the bottom of
	// the list instead of a promoted slot.
	pinned := false
	if id == b.webComponent && len(res.Suggestions) > 0 {
		if last := res.Suggestions[len(res.Suggestions)-1]; last.PinToBottom {
			pin := last
			b.pinToBottom = &pin
			trimmed := *res
			trimmed.Suggestions = res.Suggestions[:len(res.Suggestions)-1]
			res = &trimmed
			pinned = true
		}
	}

	b.reported[id] = &reportedResult{response: res}
	b.reportedOrder = append(b.reportedOrder, id)
	if !b.pastDeadlineLocked() {
		b.reportedBeforeDeadline[id] = true
	}

	// An empty late-or-midway report still moves the more-section
	// counters once the section is visible.
	return len(res.Suggestions) > 0 || pinned || b.showMoreLocked()
}

// RefreshShortcut swaps a displayed shortcut's presentation for its
// revalidated form. A nil refreshed suggestion leaves the display
// untouched; the repository forgets the shortcut but yanking the row
// mid-session would shift the list under the user. Returns true when a
// row changed.
func (b *Backer) RefreshShortcut(source suggest.ComponentID, shortcutID string, refreshed *suggest.Suggestion) bool {
	if refreshed == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.shortcuts {
		if b.shortcuts[i].Source == source && b.shortcuts[i].ShortcutID == shortcutID {
			b.shortcuts[i] = *refreshed
			return true
		}
	}
	return false
}

// ResultsPending reports whether any source has yet to report.
func (b *Backer) ResultsPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.reported) < len(b.sources)
}

// MoreResultPosition returns the position of the more row in the most
// recent snapshot, or -1 when it was not shown.
func (b *Backer) MoreResultPosition() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.moreIndex
}

func (b *Backer) pastDeadlineLocked() bool {
	return b.promotedQueryStarted && b.now().Sub(b.promotedQueryStart) >= b.deadline
}

// showMoreLocked reports whether the more section may be shown: every
// promoted source has had its say (reported, or out of time) and there
// are sources to list.
func (b *Backer) showMoreLocked() bool {
	if len(b.sources) == 0 {
		return false
	}
	if b.pastDeadlineLocked() {
		return true
	}
	for id := range b.promoted {
		if _, ok := b.reported[id]; !ok {
			return false
		}
	}
	return true
}
