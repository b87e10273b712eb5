package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/suggestd/internal/log"
	"github.com/runger/suggestd/internal/shortcuts"
	"github.com/runger/suggestd/internal/suggest"
)

func namedSources(ids ...suggest.ComponentID) []suggest.Source {
	out := make([]suggest.Source, len(ids))
	for i, id := range ids {
		out[i] = &fakeSource{id: id}
	}
	return out
}

func idsOf(sources []suggest.Source) []suggest.ComponentID {
	out := make([]suggest.ComponentID, len(sources))
	for i, s := range sources {
		out[i] = s.ComponentID()
	}
	return out
}

func TestOrderSources(t *testing.T) {
	web := &fakeSource{id: "web"}
	enabled := namedSources("apps", "contacts", "music", "browser")

	tests := []struct {
		name    string
		web     suggest.Source
		ranking []suggest.ComponentID
		want    []suggest.ComponentID
	}{
		{
			name: "no ranking keeps configured order",
			web:  web,
			want: []suggest.ComponentID{"web", "apps", "contacts", "music", "browser"},
		},
		{
			name:    "ranked sources fill promoted slots first",
			web:     web,
			ranking: []suggest.ComponentID{"music", "browser", "apps", "contacts"},
			want:    []suggest.ComponentID{"web", "music", "browser", "apps", "contacts"},
		},
		{
			name:    "unranked sources come before the ranking tail",
			web:     web,
			ranking: []suggest.ComponentID{"contacts", "music", "apps", "browser"},
			want:    []suggest.ComponentID{"web", "contacts", "music", "apps", "browser"},
		},
		{
			name:    "new sources get a shot at promotion",
			web:     web,
			ranking: []suggest.ComponentID{"music"},
			want:    []suggest.ComponentID{"web", "music", "apps", "contacts", "browser"},
		},
		{
			name:    "ranking entries for removed sources are ignored",
			web:     web,
			ranking: []suggest.ComponentID{"gone", "music"},
			want:    []suggest.ComponentID{"web", "music", "apps", "contacts", "browser"},
		},
		{
			name: "no web source",
			want: []suggest.ComponentID{"apps", "contacts", "music", "browser"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := orderSources(enabled, tt.web, tt.ranking, 4)
			assert.Equal(t, tt.want, idsOf(got))
		})
	}
}

func TestOrderSourcesWebCountsAgainstPromoted(t *testing.T) {
	web := &fakeSource{id: "web"}
	enabled := namedSources("a", "b", "c")
	ranking := []suggest.ComponentID{"a", "b", "c"}

	got := orderSources(enabled, web, ranking, 2)
	assert.Equal(t, []suggest.ComponentID{"web", "a", "b", "c"}, idsOf(got),
		"only one ranked source joins the web source up front")
}

func TestManagerEndToEnd(t *testing.T) {
	repo, err := shortcuts.Open(filepath.Join(t.TempDir(), "shortcuts.db"), log.Nop())
	require.NoError(t, err)
	defer repo.Close()

	apps := &fakeSource{id: "apps", respond: respondWith("apps", "Alpha", "Beta")}
	registry := suggest.NewRegistry([]suggest.Source{apps}, nil)

	m := NewManager(DefaultParams(), registry, repo, log.Nop())
	defer m.Close()

	cursor := m.Query("al")
	require.NotNil(t, cursor)
	require.Eventually(t, func() bool {
		items := cursor.Frame().Items
		return len(items) > 0 && items[0].Title == "Alpha"
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, -1, cursor.Click(0))
	cursor.PreClose(0)

	// The session's click lands in the repository once it drains.
	require.Eventually(t, func() bool {
		has, err := repo.HasHistory(context.Background())
		return err == nil && has
	}, 5*time.Second, 10*time.Millisecond)

	rows, err := repo.ShortcutsForQuery(context.Background(), "al", 7, time.Now())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alpha", rows[0].Title)
}

func TestManagerStartsFreshSessionAfterClose(t *testing.T) {
	repo, err := shortcuts.Open(filepath.Join(t.TempDir(), "shortcuts.db"), log.Nop())
	require.NoError(t, err)
	defer repo.Close()

	apps := &fakeSource{id: "apps"}
	registry := suggest.NewRegistry([]suggest.Source{apps}, nil)

	m := NewManager(DefaultParams(), registry, repo, log.Nop())
	defer m.Close()

	c1 := m.Query("a")
	require.NotNil(t, c1)
	m.mu.Lock()
	s1 := m.session
	m.mu.Unlock()

	c1.PreClose(-1)
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.session == nil
	}, 5*time.Second, 5*time.Millisecond)

	c2 := m.Query("b")
	require.NotNil(t, c2)
	m.mu.Lock()
	s2 := m.session
	m.mu.Unlock()
	assert.NotSame(t, s1, s2, "a drained session is replaced, not reused")
	c2.PreClose(-1)
}

func TestManagerQueryAfterClose(t *testing.T) {
	repo, err := shortcuts.Open(filepath.Join(t.TempDir(), "shortcuts.db"), log.Nop())
	require.NoError(t, err)
	defer repo.Close()

	registry := suggest.NewRegistry(namedSources("apps"), nil)
	m := NewManager(DefaultParams(), registry, repo, log.Nop())
	m.Close()

	assert.Nil(t, m.Query("a"))
}
