// Package sources provides the suggestion source implementations that
// ship with the daemon: an HTTP suggest-endpoint client speaking the
// OpenSearch completion format, and a static source backed by entries
// from the configuration file.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/runger/suggestd/internal/suggest"
)

// queryPlaceholder is replaced with the escaped query in endpoint URL
// templates.
const queryPlaceholder = "{query}"

// maxSuggestBody caps how much of a suggest endpoint's response is read.
const maxSuggestBody = 1 << 20

// HTTPOptions configures an HTTP suggest source.
type HTTPOptions struct {
	// Component identifies the source; must be unique per engine.
	Component suggest.ComponentID

	// Label and Icon are shown in the corpus/more section.
	Label string
	Icon  string

	// URL is the endpoint template. A {query} placeholder is replaced
	// with the escaped query; without one the query is appended as a
	// "q" parameter.
	URL string

	// Threshold is the minimum query length, in runes.
	Threshold int

	// QueryAfterZeroResults asks the engine to keep querying even after
	// an empty answer for a shorter prefix.
	QueryAfterZeroResults bool

	// WebSearch makes the source emit web search intents carrying the
	// completion as the search query, instead of view intents on the
	// completion URLs.
	WebSearch bool

	// Client defaults to a client with a 10 second overall timeout.
	Client *http.Client
}

// HTTPSource queries a remote suggest endpoint. The endpoint answers in
// the OpenSearch suggestions format: a JSON array of the echoed query,
// the completions, optional descriptions and optional URLs.
type HTTPSource struct {
	opts   HTTPOptions
	client *http.Client
}

// NewHTTPSource builds a source over the given endpoint.
func NewHTTPSource(opts HTTPOptions) *HTTPSource {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSource{opts: opts, client: client}
}

func (s *HTTPSource) ComponentID() suggest.ComponentID { return s.opts.Component }
func (s *HTTPSource) Label() string                    { return s.opts.Label }
func (s *HTTPSource) Icon() string                     { return s.opts.Icon }
func (s *HTTPSource) QueryThreshold() int              { return s.opts.Threshold }
func (s *HTTPSource) QueryAfterZeroResults() bool      { return s.opts.QueryAfterZeroResults }

// Suggest implements suggest.Source.
func (s *HTTPSource) Suggest(ctx context.Context, query string, maxResults, queryLimit int) (*suggest.Response, error) {
	completions, descriptions, urls, err := s.fetch(ctx, query)
	if err != nil {
		return nil, err
	}

	res := suggest.EmptyResponse(s.opts.Component)
	for i, completion := range completions {
		if maxResults > 0 && len(res.Suggestions) >= maxResults {
			break
		}
		if completion == "" {
			continue
		}
		row := suggest.Suggestion{
			Source: s.opts.Component,
			Title:  completion,
			Icon1:  s.opts.Icon,
		}
		if i < len(descriptions) {
			row.Description = descriptions[i]
		}
		switch {
		case s.opts.WebSearch:
			row.IntentAction = suggest.ActionWebSearch
			row.IntentQuery = completion
			row.ShortcutID = completion
		case i < len(urls) && urls[i] != "":
			row.IntentAction = suggest.ActionView
			row.IntentData = urls[i]
			row.ShortcutID = completion
		default:
			// Nothing to open; showing a dead row helps nobody.
			continue
		}
		res.Suggestions = append(res.Suggestions, row)
	}
	res.Count = len(res.Suggestions)
	res.QueryLimit = queryLimit
	return res, nil
}

// ValidateShortcut implements suggest.Source. A web search shortcut is
// rebuilt as-is (a search is never stale); any other shortcut is
// revalidated by asking the endpoint about it again and dropped when
// the completion no longer comes back.
func (s *HTTPSource) ValidateShortcut(ctx context.Context, shortcutID string) (*suggest.Suggestion, error) {
	if s.opts.WebSearch {
		return &suggest.Suggestion{
			Source:       s.opts.Component,
			Title:        shortcutID,
			Icon1:        s.opts.Icon,
			IntentAction: suggest.ActionWebSearch,
			IntentQuery:  shortcutID,
			ShortcutID:   shortcutID,
		}, nil
	}

	completions, _, urls, err := s.fetch(ctx, shortcutID)
	if err != nil {
		return nil, err
	}
	for i, completion := range completions {
		if !strings.EqualFold(completion, shortcutID) {
			continue
		}
		if i >= len(urls) || urls[i] == "" {
			break
		}
		return &suggest.Suggestion{
			Source:       s.opts.Component,
			Title:        completion,
			Icon1:        s.opts.Icon,
			IntentAction: suggest.ActionView,
			IntentData:   urls[i],
			ShortcutID:   completion,
		}, nil
	}
	return nil, nil
}

// fetch calls the endpoint and decodes the OpenSearch array.
func (s *HTTPSource) fetch(ctx context.Context, query string) (completions, descriptions, urls []string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(query), nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build suggest request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("suggest request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, nil, fmt.Errorf("suggest endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSuggestBody))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read suggest response: %w", err)
	}

	// [query, [completions], [descriptions]?, [urls]?]
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse suggest response: %w", err)
	}
	if len(parts) < 2 {
		return nil, nil, nil, fmt.Errorf("suggest response has %d elements, want at least 2", len(parts))
	}
	if err := json.Unmarshal(parts[1], &completions); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse completions: %w", err)
	}
	if len(parts) > 2 {
		// Descriptions and URLs are best-effort extras.
		_ = json.Unmarshal(parts[2], &descriptions)
	}
	if len(parts) > 3 {
		_ = json.Unmarshal(parts[3], &urls)
	}
	return completions, descriptions, urls, nil
}

func (s *HTTPSource) endpoint(query string) string {
	escaped := url.QueryEscape(query)
	if strings.Contains(s.opts.URL, queryPlaceholder) {
		return strings.ReplaceAll(s.opts.URL, queryPlaceholder, escaped)
	}
	sep := "?"
	if strings.Contains(s.opts.URL, "?") {
		sep = "&"
	}
	return s.opts.URL + sep + "q=" + escaped
}

var _ suggest.Source = (*HTTPSource)(nil)
