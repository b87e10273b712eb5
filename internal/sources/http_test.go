package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/suggestd/internal/suggest"
)

func suggestServer(t *testing.T, answers map[string][]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		answer, ok := answers[q]
		if !ok {
			answer = []any{q, []string{}}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(answer))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSourceSuggest(t *testing.T) {
	srv := suggestServer(t, map[string][]any{
		"go": {
			"go",
			[]string{"golang", "gopher"},
			[]string{"The Go programming language", "Mascot"},
			[]string{"https://go.dev", "https://go.dev/blog/gopher"},
		},
	})

	src := NewHTTPSource(HTTPOptions{
		Component: "docs",
		Label:     "Docs",
		URL:       srv.URL,
	})

	res, err := src.Suggest(context.Background(), "go", 58, 58)
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)

	first := res.Suggestions[0]
	assert.Equal(t, suggest.ComponentID("docs"), first.Source)
	assert.Equal(t, "golang", first.Title)
	assert.Equal(t, "The Go programming language", first.Description)
	assert.Equal(t, suggest.ActionView, first.IntentAction)
	assert.Equal(t, "https://go.dev", first.IntentData)
	assert.Equal(t, "golang", first.ShortcutID)
}

func TestHTTPSourceHonorsMaxResults(t *testing.T) {
	srv := suggestServer(t, map[string][]any{
		"a": {
			"a",
			[]string{"a1", "a2", "a3"},
			[]string{"", "", ""},
			[]string{"https://a/1", "https://a/2", "https://a/3"},
		},
	})
	src := NewHTTPSource(HTTPOptions{Component: "docs", URL: srv.URL})

	res, err := src.Suggest(context.Background(), "a", 2, 58)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
}

func TestHTTPSourceSkipsCompletionsWithoutURL(t *testing.T) {
	srv := suggestServer(t, map[string][]any{
		"a": {"a", []string{"linked", "bare"}, []string{"", ""}, []string{"https://a", ""}},
	})
	src := NewHTTPSource(HTTPOptions{Component: "docs", URL: srv.URL})

	res, err := src.Suggest(context.Background(), "a", 58, 58)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.Equal(t, "linked", res.Suggestions[0].Title)
}

func TestHTTPSourceWebSearchRows(t *testing.T) {
	srv := suggestServer(t, map[string][]any{
		"weather": {"weather", []string{"weather today", "weather radar"}},
	})
	src := NewHTTPSource(HTTPOptions{
		Component: "web",
		URL:       srv.URL,
		WebSearch: true,
	})

	res, err := src.Suggest(context.Background(), "weather", 58, 58)
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)

	row := res.Suggestions[0]
	assert.Equal(t, suggest.ActionWebSearch, row.IntentAction)
	assert.Equal(t, "weather today", row.IntentQuery)
	assert.Empty(t, row.IntentData)
}

func TestHTTPSourceURLTemplate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		_ = json.NewEncoder(w).Encode([]any{"", []string{}})
	}))
	t.Cleanup(srv.Close)

	src := NewHTTPSource(HTTPOptions{Component: "docs", URL: srv.URL + "/suggest/{query}/json"})
	_, err := src.Suggest(context.Background(), "a b", 58, 58)
	require.NoError(t, err)
	assert.Equal(t, "/suggest/a+b/json", gotPath)
}

func TestHTTPSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	src := NewHTTPSource(HTTPOptions{Component: "docs", URL: srv.URL})
	_, err := src.Suggest(context.Background(), "a", 58, 58)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPSourceMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	t.Cleanup(srv.Close)

	src := NewHTTPSource(HTTPOptions{Component: "docs", URL: srv.URL})
	_, err := src.Suggest(context.Background(), "a", 58, 58)
	require.Error(t, err)
}

func TestHTTPSourceValidateShortcut(t *testing.T) {
	srv := suggestServer(t, map[string][]any{
		"golang": {"golang", []string{"golang"}, []string{""}, []string{"https://go.dev"}},
	})
	src := NewHTTPSource(HTTPOptions{Component: "docs", URL: srv.URL})

	row, err := src.ValidateShortcut(context.Background(), "golang")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "https://go.dev", row.IntentData)

	row, err = src.ValidateShortcut(context.Background(), "vanished")
	require.NoError(t, err)
	assert.Nil(t, row, "a completion the endpoint no longer returns is deleted")
}

func TestWebSearchShortcutsNeverExpire(t *testing.T) {
	src := NewHTTPSource(HTTPOptions{Component: "web", URL: "http://unused.invalid", WebSearch: true})

	row, err := src.ValidateShortcut(context.Background(), "weather today")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, suggest.ActionWebSearch, row.IntentAction)
	assert.Equal(t, "weather today", row.IntentQuery)
}
