package engine

import (
	"sync"
	"time"

	"github.com/runger/suggestd/internal/suggest"
)

// snapshotter is the backer surface a cursor needs.
type snapshotter interface {
	Snapshot(expandMore bool) ([]suggest.Suggestion, int)
	ResultsPending() bool
}

// CursorListener receives the user-interaction events a cursor
// observes. The session implements it.
type CursorListener interface {
	// OnClosed delivers the rows the user actually saw, in display
	// order. nil when nothing attributable was shown.
	OnClosed(viewed []suggest.Suggestion)

	// OnItemClicked fires for a click on a regular row.
	OnItemClicked(s suggest.Suggestion)

	// OnMoreVisible fires once, when the more row first scrolls into
	// view.
	OnMoreVisible()
}

// Frame is a materialized cursor snapshot handed to UI clients.
type Frame struct {
	Items       []suggest.Suggestion
	IsPending   bool
	MoreIndex   int // -1 when no more row is shown
	ShowingMore bool
}

// Cursor is a query's live view of the aggregated results. Sources
// keep reporting after it is created; the cursor re-snapshots on a
// throttle and tells its observer via the change callback.
type Cursor struct {
	query        string
	backer       snapshotter
	seq          *Sequencer
	notifyWindow time.Duration
	now          func() time.Time

	mu              sync.Mutex
	data            []suggest.Suggestion
	moreIndex       int
	expandMore      bool
	prefilled       bool
	closed          bool
	listener        CursorListener
	onChange        func()
	nextNotify      time.Time
	notifyScheduled bool
	notifyIndexSent bool
	moreVisibleSent bool
}

// newCursor snapshots the backer immediately so the first paint shows
// whatever is already known (typically shortcuts).
func newCursor(query string, b snapshotter, seq *Sequencer, notifyWindow time.Duration, now func() time.Time) *Cursor {
	c := &Cursor{
		query:        query,
		backer:       b,
		seq:          seq,
		notifyWindow: notifyWindow,
		now:          now,
	}
	c.data, c.moreIndex = b.Snapshot(false)
	return c
}

// Query returns the query string the cursor was created for.
func (c *Cursor) Query() string {
	return c.query
}

// SetListener installs the interaction listener.
func (c *Cursor) SetListener(l CursorListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

// SetOnChange installs the callback invoked (on the engine sequencer)
// whenever the visible data changed.
func (c *Cursor) SetOnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Frame returns a copy of the current display state.
func (c *Cursor) Frame() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]suggest.Suggestion, len(c.data))
	copy(items, c.data)
	return Frame{
		Items:       items,
		IsPending:   c.backer.ResultsPending(),
		MoreIndex:   c.moreIndex,
		ShowingMore: c.expandMore,
	}
}

// PostRefresh re-snapshots and reports whether sources are still
// pending, plus the position the UI should draw attention to. The
// notify index is delivered once: the first refresh that shows the
// more row returns its position, every other refresh returns -1.
func (c *Cursor) PostRefresh() (isPending bool, notifyIndex int) {
	c.requery()

	c.mu.Lock()
	defer c.mu.Unlock()
	notifyIndex = -1
	if !c.notifyIndexSent && c.moreIndex >= 0 {
		c.notifyIndexSent = true
		notifyIndex = c.moreIndex
	}
	return c.backer.ResultsPending(), notifyIndex
}

// Click reports a click on the row at pos. Clicking the more row
// toggles the expanded section and returns the position to reselect;
// any other click is forwarded to the listener and returns -1.
func (c *Cursor) Click(pos int) int {
	c.mu.Lock()
	if c.closed || pos < 0 || pos >= len(c.data) {
		c.mu.Unlock()
		return -1
	}

	if pos == c.moreIndex && c.moreIndex >= 0 {
		c.expandMore = !c.expandMore
		reselect := -1
		if c.expandMore {
			reselect = pos
		}
		c.mu.Unlock()
		c.requery()
		return reselect
	}

	clicked := c.data[pos]
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener.OnItemClicked(clicked)
	}
	return -1
}

// ThreshHit reports that the list was scrolled far enough for the more
// row to be visible. Forwarded to the listener once.
func (c *Cursor) ThreshHit() {
	c.mu.Lock()
	if c.closed || c.moreVisibleSent {
		c.mu.Unlock()
		return
	}
	c.moreVisibleSent = true
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener.OnMoreVisible()
	}
}

// PreClose shuts the cursor down. maxDisplayPos is the largest list
// position the UI actually rendered; out-of-range values (including
// positions into prefilled data from the previous query) mean nothing
// attributable was seen.
func (c *Cursor) PreClose(maxDisplayPos int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true

	var viewed []suggest.Suggestion
	if !c.prefilled && maxDisplayPos >= 0 && maxDisplayPos < len(c.data) {
		viewed = make([]suggest.Suggestion, maxDisplayPos+1)
		copy(viewed, c.data[:maxDisplayPos+1])
	}
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener.OnClosed(viewed)
	}
}

// Prefill shows another cursor's rows until this query's own results
// arrive. Prefilled rows never count as impressions for this query.
func (c *Cursor) Prefill(items []suggest.Suggestion) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.data = items
	c.moreIndex = -1
	c.prefilled = true
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// OnNewResults tells the cursor the backer has fresh data. Snapshots
// are throttled to one per notify window so a burst of reporting
// sources repaints the UI once, not once per source.
func (c *Cursor) OnNewResults() {
	c.mu.Lock()
	if c.closed || c.notifyScheduled {
		c.mu.Unlock()
		return
	}
	c.notifyScheduled = true
	delay := c.nextNotify.Sub(c.now())
	c.mu.Unlock()

	if delay <= 0 {
		c.seq.Post(c.requery)
	} else {
		c.seq.PostDelayed(c.requery, delay)
	}
}

// requery takes a fresh snapshot and fires the change callback.
// Borrowed rows stay up while the snapshot is still empty; anything
// of the query's own replaces them.
func (c *Cursor) requery() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.notifyScheduled = false
	c.nextNotify = c.now().Add(c.notifyWindow)
	items, moreIndex := c.backer.Snapshot(c.expandMore)
	if !c.prefilled || len(items) > 0 {
		c.data, c.moreIndex = items, moreIndex
		c.prefilled = false
	}
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}
