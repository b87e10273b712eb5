package engine

import (
	"context"
	"sync"
	"time"

	"github.com/runger/suggestd/internal/suggest"
)

// syncExecutor runs tasks inline for deterministic fan-out tests.
type syncExecutor struct{}

func (syncExecutor) Execute(task func()) { task() }

// heldExecutor swallows tasks, simulating sources that never answer.
type heldExecutor struct{}

func (heldExecutor) Execute(func()) {}

// fakeClock drives the typing heuristic and backer deadline by hand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeSource is a scriptable suggestion source that records the
// queries it receives.
type fakeSource struct {
	id             suggest.ComponentID
	threshold      int
	queryAfterZero bool

	// respond builds the response for a query; nil means always empty.
	respond func(query string) (*suggest.Response, error)

	mu      sync.Mutex
	queries []string
	limits  [][2]int // (maxResults, queryLimit) per call
}

func (f *fakeSource) ComponentID() suggest.ComponentID { return f.id }
func (f *fakeSource) Label() string                    { return string(f.id) }
func (f *fakeSource) Icon() string                     { return "" }
func (f *fakeSource) QueryThreshold() int              { return f.threshold }
func (f *fakeSource) QueryAfterZeroResults() bool      { return f.queryAfterZero }

func (f *fakeSource) Suggest(ctx context.Context, query string, maxResults, queryLimit int) (*suggest.Response, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.limits = append(f.limits, [2]int{maxResults, queryLimit})
	f.mu.Unlock()

	if f.respond == nil {
		return suggest.EmptyResponse(f.id), nil
	}
	return f.respond(query)
}

func (f *fakeSource) ValidateShortcut(ctx context.Context, shortcutID string) (*suggest.Suggestion, error) {
	return nil, nil
}

func (f *fakeSource) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeSource) queriesSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *fakeSource) lastLimits() (maxResults, queryLimit int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.limits) == 0 {
		return 0, 0
	}
	last := f.limits[len(f.limits)-1]
	return last[0], last[1]
}

// respondWith returns a respond func serving the given titles for
// every query.
func respondWith(id suggest.ComponentID, titles ...string) func(string) (*suggest.Response, error) {
	return func(query string) (*suggest.Response, error) {
		res := suggest.EmptyResponse(id)
		for _, title := range titles {
			res.Suggestions = append(res.Suggestions, suggest.Suggestion{
				Source:       id,
				Title:        title,
				IntentAction: suggest.ActionView,
				IntentData:   string(id) + "/" + title,
			})
		}
		res.Count = len(res.Suggestions)
		res.QueryLimit = 58
		return res, nil
	}
}
