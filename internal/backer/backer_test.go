package backer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/suggestd/internal/suggest"
)

type stubSource struct {
	id suggest.ComponentID
}

func (s *stubSource) ComponentID() suggest.ComponentID { return s.id }
func (s *stubSource) Label() string                    { return string(s.id) }
func (s *stubSource) Icon() string                     { return "" }
func (s *stubSource) QueryThreshold() int              { return 0 }
func (s *stubSource) QueryAfterZeroResults() bool      { return false }

func (s *stubSource) Suggest(context.Context, string, int, int) (*suggest.Response, error) {
	return suggest.EmptyResponse(s.id), nil
}

func (s *stubSource) ValidateShortcut(context.Context, string) (*suggest.Suggestion, error) {
	return nil, nil
}

type testFactory struct{}

func (testFactory) MoreEntry(expanded, pending bool, stats []SourceStat) suggest.Suggestion {
	title := "more"
	if expanded {
		title = "less"
	}
	return suggest.Suggestion{Source: "builtin", Title: title, IntentAction: suggest.ActionNone}
}

func (testFactory) CorpusEntry(stat SourceStat, pending bool) suggest.Suggestion {
	return suggest.Suggestion{
		Source:       "builtin",
		Title:        "corpus:" + string(stat.Source),
		IntentAction: suggest.ActionChangeSource,
		IntentData:   string(stat.Source),
	}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func row(source suggest.ComponentID, title string) suggest.Suggestion {
	return suggest.Suggestion{
		Source:       source,
		Title:        title,
		IntentAction: suggest.ActionView,
		IntentData:   string(source) + "/" + title,
	}
}

func response(source suggest.ComponentID, titles ...string) *suggest.Response {
	res := suggest.EmptyResponse(source)
	for _, title := range titles {
		res.Suggestions = append(res.Suggestions, row(source, title))
	}
	res.Count = len(res.Suggestions)
	res.QueryLimit = 50
	return res
}

func titles(list []suggest.Suggestion) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.Title
	}
	return out
}

func newBacker(t *testing.T, cfg Config) (*Backer, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	cfg.Now = clock.now
	if cfg.MaxPromoted == 0 {
		cfg.MaxPromoted = 4
	}
	if cfg.Deadline == 0 {
		cfg.Deadline = 3500 * time.Millisecond
	}
	if cfg.Factory == nil {
		cfg.Factory = testFactory{}
	}
	b, err := New(cfg)
	require.NoError(t, err)
	return b, clock
}

func TestPromotedChunkingIsFair(t *testing.T) {
	apps := &stubSource{id: "apps"}
	contacts := &stubSource{id: "contacts"}
	b, _ := newBacker(t, Config{
		Sources:  []suggest.Source{apps, contacts},
		Promoted: map[suggest.ComponentID]bool{"apps": true, "contacts": true},
	})
	b.ReportPromotedQueryStart()

	b.AddSourceResult(response("apps", "a1", "a2", "a3"))
	b.AddSourceResult(response("contacts", "c1", "c2", "c3"))

	list, _ := b.Snapshot(false)
	// Four slots, two sources: two rows each, first reporter first.
	assert.Equal(t, []string{"a1", "a2", "c1", "c2", "more"}, titles(list))
}

func TestShortcutsClaimPromotedSlots(t *testing.T) {
	apps := &stubSource{id: "apps"}
	contacts := &stubSource{id: "contacts"}
	b, _ := newBacker(t, Config{
		Shortcuts: []suggest.Suggestion{row("history", "s1"), row("history", "s2"), row("history", "s3")},
		Sources:   []suggest.Source{apps, contacts},
		Promoted:  map[suggest.ComponentID]bool{"apps": true, "contacts": true},
	})
	b.ReportPromotedQueryStart()

	b.AddSourceResult(response("apps", "a1", "a2"))
	b.AddSourceResult(response("contacts", "c1", "c2"))

	list, moreIdx := b.Snapshot(false)
	// One slot left after three shortcuts; the chunk floor of one lets
	// the first reporter take it.
	assert.Equal(t, []string{"s1", "s2", "s3", "a1", "more"}, titles(list))
	assert.Equal(t, 4, moreIdx)
}

func TestSecondPassFillsLeftoverSlots(t *testing.T) {
	apps := &stubSource{id: "apps"}
	contacts := &stubSource{id: "contacts"}
	b, _ := newBacker(t, Config{
		Sources:  []suggest.Source{apps, contacts},
		Promoted: map[suggest.ComponentID]bool{"apps": true, "contacts": true},
	})
	b.ReportPromotedQueryStart()

	b.AddSourceResult(response("apps", "a1"))
	b.AddSourceResult(response("contacts", "c1", "c2", "c3", "c4"))

	list, _ := b.Snapshot(false)
	// apps runs dry after one row; contacts absorbs the remaining slot.
	assert.Equal(t, []string{"a1", "c1", "c2", "c3", "more"}, titles(list))
}

func TestLateReporterLosesPromotedSlots(t *testing.T) {
	apps := &stubSource{id: "apps"}
	contacts := &stubSource{id: "contacts"}
	b, clock := newBacker(t, Config{
		Sources:  []suggest.Source{apps, contacts},
		Promoted: map[suggest.ComponentID]bool{"apps": true, "contacts": true},
	})
	b.ReportPromotedQueryStart()

	b.AddSourceResult(response("apps", "a1"))
	clock.advance(4 * time.Second)
	b.AddSourceResult(response("contacts", "c1", "c2"))

	list, moreIdx := b.Snapshot(true)
	require.NotEqual(t, -1, moreIdx)
	assert.Equal(t, []string{"a1", "less", "corpus:contacts"}, titles(list),
		"late results show only through the more section")
}

func TestDuplicateOfShortcutSkipped(t *testing.T) {
	apps := &stubSource{id: "apps"}
	shortcut := row("apps", "a1")
	b, _ := newBacker(t, Config{
		Shortcuts: []suggest.Suggestion{shortcut},
		Sources:   []suggest.Source{apps},
		Promoted:  map[suggest.ComponentID]bool{"apps": true},
	})
	b.ReportPromotedQueryStart()

	b.AddSourceResult(response("apps", "a1", "a2"))

	list, _ := b.Snapshot(false)
	assert.Equal(t, []string{"a1", "a2", "more"}, titles(list),
		"the source's duplicate of the shortcut appears once")
}

func TestEagerReporterWaitsForSilentPeer(t *testing.T) {
	apps := &stubSource{id: "apps"}
	contacts := &stubSource{id: "contacts"}
	searchWeb := row("builtin", "Search the web")
	b, clock := newBacker(t, Config{
		Shortcuts:    []suggest.Suggestion{row("apps", "a1")},
		Sources:      []suggest.Source{apps, contacts},
		Promoted:     map[suggest.ComponentID]bool{"apps": true, "contacts": true},
		SearchTheWeb: &searchWeb,
		MaxPromoted:  6,
	})
	b.ReportPromotedQueryStart()

	b.AddSourceResult(response("apps", "a1", "a2", "a3", "a4"))

	// Five slots split over the two configured promoted sources give
	// apps a chunk of two, and its duplicate of the shortcut spends one
	// of them. Nothing past the chunk shows while contacts can still
	// report.
	list, moreIdx := b.Snapshot(false)
	assert.Equal(t, []string{"a1", "a2"}, titles(list))
	assert.Equal(t, -1, moreIdx)

	clock.advance(4 * time.Second)
	list, moreIdx = b.Snapshot(false)
	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "Search the web", "more"}, titles(list),
		"the deadline releases the leftover slots and the trailing rows")
	assert.Equal(t, 5, moreIdx)
}

func TestMoreHiddenUntilPromotedReportOrDeadline(t *testing.T) {
	apps := &stubSource{id: "apps"}
	contacts := &stubSource{id: "contacts"}
	b, clock := newBacker(t, Config{
		Sources:  []suggest.Source{apps, contacts},
		Promoted: map[suggest.ComponentID]bool{"apps": true, "contacts": true},
	})
	b.ReportPromotedQueryStart()

	b.AddSourceResult(response("apps", "a1"))
	list, moreIdx := b.Snapshot(false)
	assert.Equal(t, -1, moreIdx)
	assert.Equal(t, []string{"a1"}, titles(list))
	assert.True(t, b.ResultsPending())

	clock.advance(4 * time.Second)
	_, moreIdx = b.Snapshot(false)
	assert.NotEqual(t, -1, moreIdx, "deadline opens the more section without the laggard")
	assert.Equal(t, moreIdx, b.MoreResultPosition())
}

func TestExpandedMoreListsPendingSources(t *testing.T) {
	apps := &stubSource{id: "apps"}
	contacts := &stubSource{id: "contacts"}
	b, clock := newBacker(t, Config{
		Sources:  []suggest.Source{apps, contacts},
		Promoted: map[suggest.ComponentID]bool{"apps": true},
	})
	b.ReportPromotedQueryStart()
	b.AddSourceResult(response("apps", "a1", "a2", "a3", "a4", "a5"))
	clock.advance(4 * time.Second)

	list, moreIdx := b.Snapshot(true)
	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "less", "corpus:apps", "corpus:contacts"}, titles(list))
	assert.Equal(t, 4, moreIdx)
}

func TestPromotedStatsCountOnlyUndisplayed(t *testing.T) {
	apps := &stubSource{id: "apps"}
	b, _ := newBacker(t, Config{
		Sources:  []suggest.Source{apps},
		Promoted: map[suggest.ComponentID]bool{"apps": true},
	})
	b.ReportPromotedQueryStart()

	res := response("apps", "a1", "a2", "a3", "a4", "a5", "a6")
	res.Count = 20
	b.AddSourceResult(res)

	_, _ = b.Snapshot(false)
	b.mu.Lock()
	displayed := map[suggest.ComponentID]int{"apps": 4}
	stats := b.sourceStatsLocked(displayed)
	b.mu.Unlock()

	require.Len(t, stats, 1)
	assert.Equal(t, 16, stats[0].NumResults)
	assert.Equal(t, 46, stats[0].QueryLimit)
	assert.True(t, stats[0].Promoted)
}

func TestExhaustedPromotedSourceLeavesMoreSection(t *testing.T) {
	apps := &stubSource{id: "apps"}
	contacts := &stubSource{id: "contacts"}
	b, _ := newBacker(t, Config{
		Sources:  []suggest.Source{apps, contacts},
		Promoted: map[suggest.ComponentID]bool{"apps": true, "contacts": true},
	})
	b.ReportPromotedQueryStart()

	b.AddSourceResult(response("apps", "a1"))
	b.AddSourceResult(response("contacts", "c1", "c2", "c3", "c4", "c5"))

	list, _ := b.Snapshot(true)
	assert.Equal(t, []string{"a1", "c1", "c2", "c3", "less", "corpus:contacts"}, titles(list),
		"apps has nothing left to offer and is dropped from the section")
}

func TestPinToBottomExtractedAndAppendedLast(t *testing.T) {
	web := &stubSource{id: "web"}
	apps := &stubSource{id: "apps"}
	b, _ := newBacker(t, Config{
		Sources:   []suggest.Source{web, apps},
		Promoted:  map[suggest.ComponentID]bool{"web": true, "apps": true},
		WebSource: web,
	})
	b.ReportPromotedQueryStart()

	res := response("web", "w1", "w2")
	pin := row("web", "manage search history")
	pin.PinToBottom = true
	res.Suggestions = append(res.Suggestions, pin)
	res.Count = 3
	b.AddSourceResult(res)
	b.AddSourceResult(response("apps", "a1"))

	list, _ := b.Snapshot(false)
	require.NotEmpty(t, list)
	assert.Equal(t, []string{"w1", "w2", "a1", "more", "manage search history"}, titles(list))
	assert.True(t, list[len(list)-1].PinToBottom)
}

func TestBuiltinRowsBracketTheList(t *testing.T) {
	apps := &stubSource{id: "apps"}
	goWeb := row("builtin", "Go to example.com")
	searchWeb := row("builtin", "Search the web")
	b, _ := newBacker(t, Config{
		Sources:      []suggest.Source{apps},
		Promoted:     map[suggest.ComponentID]bool{"apps": true},
		GoToWebsite:  &goWeb,
		SearchTheWeb: &searchWeb,
	})
	b.ReportPromotedQueryStart()
	b.AddSourceResult(response("apps", "a1"))

	list, moreIdx := b.Snapshot(false)
	assert.Equal(t, []string{"Go to example.com", "a1", "Search the web", "more"}, titles(list))
	assert.Equal(t, 3, moreIdx)
}

func TestCachedResultRegistersAndPromotesSource(t *testing.T) {
	apps := &stubSource{id: "apps"}
	b, _ := newBacker(t, Config{
		Sources:  []suggest.Source{},
		Promoted: map[suggest.ComponentID]bool{},
	})
	b.ReportPromotedQueryStart()

	b.AddCachedSourceResult(apps, response("apps", "a1"), true)

	list, _ := b.Snapshot(false)
	assert.Equal(t, []string{"a1", "more"}, titles(list))
	assert.False(t, b.ResultsPending())
}

func TestDuplicateReportIgnored(t *testing.T) {
	apps := &stubSource{id: "apps"}
	b, _ := newBacker(t, Config{
		Sources:  []suggest.Source{apps},
		Promoted: map[suggest.ComponentID]bool{"apps": true},
	})
	b.ReportPromotedQueryStart()

	assert.True(t, b.AddSourceResult(response("apps", "a1")))
	assert.False(t, b.AddSourceResult(response("apps", "a2")))

	list, _ := b.Snapshot(false)
	assert.Equal(t, []string{"a1", "more"}, titles(list))
}

func TestRefreshShortcutInPlace(t *testing.T) {
	shortcut := row("apps", "Old Title")
	shortcut.ShortcutID = "s1"
	b, _ := newBacker(t, Config{
		Shortcuts: []suggest.Suggestion{shortcut},
		Sources:   []suggest.Source{&stubSource{id: "apps"}},
		Promoted:  map[suggest.ComponentID]bool{"apps": true},
	})

	refreshed := row("apps", "New Title")
	refreshed.ShortcutID = "s1"
	assert.True(t, b.RefreshShortcut("apps", "s1", &refreshed))
	assert.False(t, b.RefreshShortcut("apps", "missing", &refreshed))
	assert.False(t, b.RefreshShortcut("apps", "s1", nil), "an invalid shortcut stays on screen for this session")

	b.AddSourceResult(response("apps"))
	list, _ := b.Snapshot(false)
	require.NotEmpty(t, list)
	assert.Equal(t, "New Title", list[0].Title)
}

func TestTooManyPromotedRejected(t *testing.T) {
	_, err := New(Config{
		MaxPromoted: 1,
		Promoted:    map[suggest.ComponentID]bool{"a": true, "b": true},
	})
	assert.Error(t, err)
}

func TestSourceStartedTracking(t *testing.T) {
	b, _ := newBacker(t, Config{
		Sources:  []suggest.Source{&stubSource{id: "apps"}},
		Promoted: map[suggest.ComponentID]bool{"apps": true},
	})

	assert.False(t, b.SourceStarted("apps"))
	assert.True(t, b.ReportSourceStarted("apps"))
	assert.False(t, b.ReportSourceStarted("apps"), "second report is a no-op")
	assert.True(t, b.SourceStarted("apps"))
}
