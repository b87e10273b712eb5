package engine

import (
	"sync"

	"github.com/runger/suggestd/internal/suggest"
)

// QueryResults holds the responses collected for one query string, in
// arrival order. Instances are owned by the session cache; readers get
// snapshots.
type QueryResults struct {
	order []suggest.ComponentID
	byID  map[suggest.ComponentID]*suggest.Response
}

func newQueryResults() *QueryResults {
	return &QueryResults{byID: make(map[suggest.ComponentID]*suggest.Response)}
}

func (q *QueryResults) add(res *suggest.Response) {
	if _, dup := q.byID[res.Source]; dup {
		return
	}
	q.byID[res.Source] = res
	q.order = append(q.order, res.Source)
}

// Contains reports whether the source already answered this query.
func (q *QueryResults) Contains(id suggest.ComponentID) bool {
	if q == nil {
		return false
	}
	_, ok := q.byID[id]
	return ok
}

// All returns the responses in arrival order.
func (q *QueryResults) All() []*suggest.Response {
	if q == nil {
		return nil
	}
	out := make([]*suggest.Response, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.byID[id])
	}
	return out
}

// SessionCache remembers what happened earlier in a search session:
// which responses each typed prefix already has (so backspacing does
// not requery), which sources returned nothing for which prefixes (so
// extending the query skips them), and which shortcuts were already
// revalidated.
//
// Result caching is bounded: queries beyond the capacity are evicted
// least-recently-used and simply get requeried. Zero-result and
// refresh tracking is exact for the whole session.
type SessionCache struct {
	results *lru[string, *QueryResults]

	mu        sync.Mutex
	zero      map[string]map[suggest.ComponentID]bool
	refreshed map[refreshedKey]bool
}

type refreshedKey struct {
	source     suggest.ComponentID
	shortcutID string
}

// NewSessionCache creates a cache keeping results for up to capacity
// distinct queries.
func NewSessionCache(capacity int) *SessionCache {
	return &SessionCache{
		results:   newLRU[string, *QueryResults](capacity),
		zero:      make(map[string]map[suggest.ComponentID]bool),
		refreshed: make(map[refreshedKey]bool),
	}
}

// ReportSourceResult caches a source's response for a query. Error
// responses are not cached; the source deserves another chance when
// the query is retyped.
func (c *SessionCache) ReportSourceResult(query string, src suggest.Source, res *suggest.Response) {
	if res == nil || res.Err() {
		return
	}

	results, ok := c.results.get(query)
	if !ok {
		results = newQueryResults()
		c.results.put(query, results)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	results.add(res)

	if len(res.Suggestions) == 0 && !src.QueryAfterZeroResults() {
		set, ok := c.zero[query]
		if !ok {
			set = make(map[suggest.ComponentID]bool)
			c.zero[query] = set
		}
		set[res.Source] = true
	}
}

// SourceResults returns a snapshot of the responses cached for query,
// or nil. The snapshot does not see responses that arrive later.
func (c *SessionCache) SourceResults(query string) *QueryResults {
	results, ok := c.results.get(query)
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := newQueryResults()
	for _, id := range results.order {
		snapshot.add(results.byID[id])
	}
	return snapshot
}

// HasReportedZeroResultsForPrefix reports whether the source returned
// nothing for some strict prefix of query earlier in the session. Such
// a source cannot match the longer query either and is skipped, unless
// it asked for queries after zero results (those are never recorded
// here).
func (c *SessionCache) HasReportedZeroResultsForPrefix(query string, id suggest.ComponentID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range query {
		if c.zero[query[:i]][id] {
			return true
		}
	}
	return false
}

// ReportRefreshedShortcut records that a shortcut was revalidated.
func (c *SessionCache) ReportRefreshedShortcut(source suggest.ComponentID, shortcutID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed[refreshedKey{source, shortcutID}] = true
}

// HasShortcutBeenRefreshed reports whether the shortcut was already
// revalidated this session; once is enough.
func (c *SessionCache) HasShortcutBeenRefreshed(source suggest.ComponentID, shortcutID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshed[refreshedKey{source, shortcutID}]
}
