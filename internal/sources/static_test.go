package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/suggestd/internal/suggest"
)

func demoEntries() []StaticEntry {
	return []StaticEntry{
		{ID: "settings", Title: "Search Settings", Keywords: []string{"preferences"}, IntentData: "suggestd://settings"},
		{ID: "clear", Title: "Clear History", IntentData: "suggestd://clear"},
		{ID: "docs", Title: "Documentation", Keywords: []string{"manual", "help"}, IntentData: "https://example.com/docs"},
	}
}

func TestStaticSourceMatchesTitleWords(t *testing.T) {
	src := NewStaticSource("builtin", "Built-in", "", 0, demoEntries())

	res, err := src.Suggest(context.Background(), "se", 58, 58)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "Search Settings", res.Suggestions[0].Title)

	// Any word of the title matches, not just the first.
	res, err = src.Suggest(context.Background(), "hist", 58, 58)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "Clear History", res.Suggestions[0].Title)
}

func TestStaticSourceMatchesKeywords(t *testing.T) {
	src := NewStaticSource("builtin", "Built-in", "", 0, demoEntries())

	res, err := src.Suggest(context.Background(), "Manu", 58, 58)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "Documentation", res.Suggestions[0].Title)
}

func TestStaticSourceEmptyQuery(t *testing.T) {
	src := NewStaticSource("builtin", "Built-in", "", 0, demoEntries())

	res, err := src.Suggest(context.Background(), "  ", 58, 58)
	require.NoError(t, err)
	assert.Zero(t, res.Count)
}

func TestStaticSourceRowDefaults(t *testing.T) {
	src := NewStaticSource("builtin", "Built-in", "resource://x", 0, demoEntries())

	res, err := src.Suggest(context.Background(), "doc", 58, 58)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	row := res.Suggestions[0]
	assert.Equal(t, suggest.ActionView, row.IntentAction)
	assert.Equal(t, "docs", row.ShortcutID)
	assert.Equal(t, "resource://x", row.Icon1)
}

func TestStaticSourceValidateShortcut(t *testing.T) {
	src := NewStaticSource("builtin", "Built-in", "", 0, demoEntries())

	row, err := src.ValidateShortcut(context.Background(), "docs")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Documentation", row.Title)

	row, err = src.ValidateShortcut(context.Background(), "removed-entry")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestStaticSourceMaxResults(t *testing.T) {
	entries := []StaticEntry{
		{ID: "a1", Title: "alpha one", IntentData: "x"},
		{ID: "a2", Title: "alpha two", IntentData: "x"},
		{ID: "a3", Title: "alpha three", IntentData: "x"},
	}
	src := NewStaticSource("builtin", "Built-in", "", 0, entries)

	res, err := src.Suggest(context.Background(), "alpha", 2, 58)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
}
