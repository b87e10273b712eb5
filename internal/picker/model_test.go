package picker

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/suggestd/internal/engine"
	"github.com/runger/suggestd/internal/suggest"
)

type fakeCursor struct {
	frame      engine.Frame
	clicks     []int
	preClosed  []int
	threshHits int
	pending    bool
	refreshes  int
}

func (c *fakeCursor) Frame() engine.Frame { return c.frame }

func (c *fakeCursor) PostRefresh() (bool, int) {
	c.refreshes++
	return c.pending, -1
}

func (c *fakeCursor) Click(pos int) int {
	c.clicks = append(c.clicks, pos)
	if pos == c.frame.MoreIndex && c.frame.MoreIndex >= 0 {
		c.frame.ShowingMore = !c.frame.ShowingMore
		if c.frame.ShowingMore {
			return pos
		}
	}
	return -1
}

func (c *fakeCursor) ThreshHit() { c.threshHits++ }

func (c *fakeCursor) PreClose(maxDisplayPos int) {
	c.preClosed = append(c.preClosed, maxDisplayPos)
}

type fakeEngine struct {
	queries  []string
	cursors  []*fakeCursor
	build    func(q string) *fakeCursor
	shutdown bool
}

func (e *fakeEngine) Query(q string) Cursor {
	if e.shutdown {
		return nil
	}
	e.queries = append(e.queries, q)
	c := e.build(q)
	e.cursors = append(e.cursors, c)
	return c
}

func viewRows(titles ...string) []suggest.Suggestion {
	rows := make([]suggest.Suggestion, len(titles))
	for i, title := range titles {
		rows[i] = suggest.Suggestion{
			Source:       "apps",
			Title:        title,
			IntentAction: suggest.ActionView,
			IntentData:   "https://example.com/" + title,
		}
	}
	return rows
}

func testLauncher() *Launcher {
	return &Launcher{Opener: "opener {url}", SearchURL: "https://search.example.com/?q={query}"}
}

// update drives one message through the model.
func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func newTestModel(t *testing.T, eng *fakeEngine, maxVisible int) Model {
	t.Helper()
	m := NewModel(eng, testLauncher(), maxVisible)
	m, _ = update(t, m, initMsg{})
	return m
}

func TestModelStartsWithEmptyQuery(t *testing.T) {
	eng := &fakeEngine{build: func(string) *fakeCursor {
		return &fakeCursor{frame: engine.Frame{MoreIndex: -1}}
	}}
	newTestModel(t, eng, 5)

	assert.Equal(t, []string{""}, eng.queries)
}

func TestTypingQueriesPerKeystroke(t *testing.T) {
	eng := &fakeEngine{build: func(string) *fakeCursor {
		return &fakeCursor{frame: engine.Frame{MoreIndex: -1}}
	}}
	m := newTestModel(t, eng, 5)

	m, _ = update(t, m, keyRune('j'))
	m, _ = update(t, m, keyRune('o'))
	update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})

	assert.Equal(t, []string{"", "j", "jo", "j"}, eng.queries)

	// Every superseded cursor was closed.
	for _, c := range eng.cursors[:len(eng.cursors)-1] {
		assert.Len(t, c.preClosed, 1)
	}
}

func TestEnterLaunchesSelectedRow(t *testing.T) {
	cur := &fakeCursor{frame: engine.Frame{
		Items:     viewRows("alpha", "beta"),
		MoreIndex: -1,
	}}
	eng := &fakeEngine{build: func(string) *fakeCursor { return cur }}
	m := newTestModel(t, eng, 5)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	assert.Equal(t, []string{"opener", "https://example.com/alpha"}, m.LaunchCommand())
	assert.Equal(t, []int{0}, cur.clicks)
	// Both rows were on screen when the cursor closed.
	assert.Equal(t, []int{1}, cur.preClosed)
}

func TestEnterOnMoreRowTogglesWithoutQuitting(t *testing.T) {
	items := viewRows("alpha", "beta")
	items = append(items, suggest.Suggestion{
		Source:       "builtin",
		Title:        "More results",
		IntentAction: suggest.ActionNone,
	})
	cur := &fakeCursor{frame: engine.Frame{Items: items, MoreIndex: 2}}
	eng := &fakeEngine{build: func(string) *fakeCursor { return cur }}
	m := newTestModel(t, eng, 5)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Nil(t, m.LaunchCommand())
	assert.Equal(t, []int{2}, cur.clicks)
	assert.Equal(t, 2, m.selection)
}

func TestEscClosesWithSeenRows(t *testing.T) {
	cur := &fakeCursor{frame: engine.Frame{
		Items:     viewRows("alpha", "beta"),
		MoreIndex: -1,
	}}
	eng := &fakeEngine{build: func(string) *fakeCursor { return cur }}
	m := newTestModel(t, eng, 5)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, []int{1}, cur.preClosed)
}

func TestStalePollIgnored(t *testing.T) {
	cur := &fakeCursor{frame: engine.Frame{MoreIndex: -1}, pending: true}
	eng := &fakeEngine{build: func(string) *fakeCursor { return cur }}
	m := newTestModel(t, eng, 5)

	m, _ = update(t, m, pollMsg{id: 0})
	assert.Equal(t, 0, cur.refreshes)

	// The current poll id refreshes and, still pending, re-arms.
	_, cmd := update(t, m, pollMsg{id: m.pollID})
	assert.Equal(t, 1, cur.refreshes)
	assert.NotNil(t, cmd)
}

func TestPollStopsWhenSettled(t *testing.T) {
	cur := &fakeCursor{frame: engine.Frame{MoreIndex: -1}, pending: false}
	eng := &fakeEngine{build: func(string) *fakeCursor { return cur }}
	m := newTestModel(t, eng, 5)

	_, cmd := update(t, m, pollMsg{id: m.pollID})
	assert.Equal(t, 1, cur.refreshes)
	assert.Nil(t, cmd)
}

func TestViewportTracksSeenRows(t *testing.T) {
	cur := &fakeCursor{frame: engine.Frame{
		Items:     viewRows("a", "b", "c", "d", "e", "f", "g"),
		MoreIndex: -1,
	}}
	eng := &fakeEngine{build: func(string) *fakeCursor { return cur }}
	m := newTestModel(t, eng, 3)

	assert.Equal(t, 2, m.maxSeen)

	for i := 0; i < 5; i++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, 5, m.selection)
	assert.Equal(t, 3, m.scroll)
	assert.Equal(t, 5, m.maxSeen)

	update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, []int{5}, cur.preClosed)
}

func TestThreshHitWhenMoreRowScrollsIn(t *testing.T) {
	items := viewRows("a", "b", "c", "d")
	items = append(items, suggest.Suggestion{Source: "builtin", Title: "More results"})
	cur := &fakeCursor{frame: engine.Frame{Items: items, MoreIndex: 4}}
	eng := &fakeEngine{build: func(string) *fakeCursor { return cur }}
	m := newTestModel(t, eng, 3)

	// More row starts below the fold.
	assert.Zero(t, cur.threshHits)

	for i := 0; i < 4; i++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Greater(t, cur.threshHits, 0)
}

func TestEngineShutdownEndsPicker(t *testing.T) {
	eng := &fakeEngine{shutdown: true}
	m := NewModel(eng, testLauncher(), 5)

	next, cmd := update(t, m, initMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Error(t, next.Err())
}

func TestViewRendersRows(t *testing.T) {
	cur := &fakeCursor{frame: engine.Frame{
		Items:     viewRows("alpha"),
		MoreIndex: -1,
		IsPending: true,
	}}
	eng := &fakeEngine{build: func(string) *fakeCursor { return cur }}
	m := newTestModel(t, eng, 5)

	view := m.View()
	assert.Contains(t, view, "alpha")
}
