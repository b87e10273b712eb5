// Package builtin produces the engine's own suggestion rows: the
// search-the-web and go-to-website entries, the expandable "more
// results" row and the per-source corpus entries beneath it.
package builtin

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/runger/suggestd/internal/backer"
	"github.com/runger/suggestd/internal/suggest"
)

// Component is the source id stamped on every built-in row.
const Component suggest.ComponentID = "builtin"

// urlPattern matches query strings that are plausibly a website
// address: an optional scheme, at least one dotted label, and an
// optional path.
var urlPattern = regexp.MustCompile(`(?i)^(https?://)?([a-z0-9-]+\.)+[a-z]{2,}(:\d+)?(/\S*)?$`)

// Factory builds built-in rows for one query.
type Factory struct {
	query string
}

// NewFactory returns a factory for the given query string.
func NewFactory(query string) *Factory {
	return &Factory{query: query}
}

// SearchTheWeb returns the row that submits the query to the web
// search source, or nil for an empty query.
func (f *Factory) SearchTheWeb() *suggest.Suggestion {
	if strings.TrimSpace(f.query) == "" {
		return nil
	}
	return &suggest.Suggestion{
		Source:       Component,
		Title:        "Search the web",
		Description:  f.query,
		Icon1:        suggest.IconWeb,
		IntentAction: suggest.ActionWebSearch,
		IntentQuery:  f.query,
		ShortcutID:   suggest.NeverMakeShortcut,
	}
}

// GoToWebsite returns the direct navigation row when the query looks
// like a website address, nil otherwise.
func (f *Factory) GoToWebsite() *suggest.Suggestion {
	query := strings.TrimSpace(f.query)
	if !urlPattern.MatchString(query) {
		return nil
	}
	target := query
	if !strings.HasPrefix(strings.ToLower(target), "http://") &&
		!strings.HasPrefix(strings.ToLower(target), "https://") {
		target = "http://" + target
	}
	return &suggest.Suggestion{
		Source:       Component,
		Title:        "Go to " + query,
		Icon1:        suggest.IconWeb,
		IntentAction: suggest.ActionView,
		IntentData:   target,
		ShortcutID:   suggest.NeverMakeShortcut,
	}
}

// MoreEntry implements backer.EntryFactory. The description summarizes
// what each source still has to offer.
func (f *Factory) MoreEntry(expanded, pending bool, stats []backer.SourceStat) suggest.Suggestion {
	title := "More results"
	if expanded {
		title = "Fewer results"
	}

	var parts []string
	for _, stat := range stats {
		if !stat.Responded {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", stat.Label, countString(stat.NumResults, stat.QueryLimit)))
	}

	s := suggest.Suggestion{
		Source:       Component,
		Format:       suggest.FormatHTML,
		Title:        title,
		Description:  strings.Join(parts, ", "),
		Icon1:        suggest.IconMore,
		IntentAction: suggest.ActionNone,
		ShortcutID:   suggest.NeverMakeShortcut,
	}
	if pending {
		s.Icon2 = suggest.IconSpinner
	}
	return s
}

// CorpusEntry implements backer.EntryFactory. Clicking the row narrows
// the search to that source's corpus.
func (f *Factory) CorpusEntry(stat backer.SourceStat, pending bool) suggest.Suggestion {
	s := suggest.Suggestion{
		Source:       Component,
		Title:        stat.Label,
		Icon1:        stat.Icon,
		IntentAction: suggest.ActionChangeSource,
		IntentData:   string(stat.Source),
		IntentQuery:  f.query,
		ShortcutID:   suggest.NeverMakeShortcut,
	}
	switch {
	case !stat.Responded:
		s.Description = "Searching..."
		if pending {
			s.Icon2 = suggest.IconSpinner
		}
	case stat.Promoted:
		s.Description = countString(stat.NumResults, stat.QueryLimit) + " additional results"
	default:
		s.Description = countString(stat.NumResults, stat.QueryLimit) + " results"
	}
	return s
}

// countString renders a result count against its advisory cap. A count
// that hit the cap only means "cap or more", so it is rounded down to
// a friendly "N+" instead of pretending to be exact.
func countString(count, limit int) string {
	if limit > 0 && count >= limit {
		if limit > 10 {
			return strconv.Itoa(10*((limit-1)/10)) + "+"
		}
		return strconv.Itoa(count) + "+"
	}
	return strconv.Itoa(count)
}

var _ backer.EntryFactory = (*Factory)(nil)
