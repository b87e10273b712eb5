package sources

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/runger/suggestd/internal/suggest"
)

// StaticEntry is one configured suggestion served by a StaticSource.
type StaticEntry struct {
	// ID doubles as the shortcut id; entries removed from the
	// configuration invalidate their shortcuts on the next refresh.
	ID          string
	Title       string
	Description string

	// Keywords are extra match terms besides the title.
	Keywords []string

	IntentAction string
	IntentData   string
}

// StaticSource serves a fixed entry list from the configuration,
// matched by case-insensitive prefix on title words and keywords. It
// answers instantly, which also makes it the workhorse of the demo
// configuration and the integration tests.
type StaticSource struct {
	component suggest.ComponentID
	label     string
	icon      string
	threshold int
	entries   []StaticEntry
}

// NewStaticSource builds a source over the given entries.
func NewStaticSource(component suggest.ComponentID, label, icon string, threshold int, entries []StaticEntry) *StaticSource {
	return &StaticSource{
		component: component,
		label:     label,
		icon:      icon,
		threshold: threshold,
		entries:   entries,
	}
}

func (s *StaticSource) ComponentID() suggest.ComponentID { return s.component }
func (s *StaticSource) Label() string                    { return s.label }
func (s *StaticSource) Icon() string                     { return s.icon }
func (s *StaticSource) QueryThreshold() int              { return s.threshold }
func (s *StaticSource) QueryAfterZeroResults() bool      { return false }

// Suggest implements suggest.Source.
func (s *StaticSource) Suggest(ctx context.Context, query string, maxResults, queryLimit int) (*suggest.Response, error) {
	res := suggest.EmptyResponse(s.component)
	q := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(q) == 0 {
		return res, nil
	}

	for _, entry := range s.entries {
		if maxResults > 0 && len(res.Suggestions) >= maxResults {
			break
		}
		if s.matches(entry, q) {
			res.Suggestions = append(res.Suggestions, s.row(entry))
		}
	}
	res.Count = len(res.Suggestions)
	res.QueryLimit = queryLimit
	return res, nil
}

// ValidateShortcut implements suggest.Source. A shortcut whose entry is
// gone from the configuration reports nil, deleting it.
func (s *StaticSource) ValidateShortcut(ctx context.Context, shortcutID string) (*suggest.Suggestion, error) {
	for _, entry := range s.entries {
		if entry.ID == shortcutID {
			row := s.row(entry)
			return &row, nil
		}
	}
	return nil, nil
}

func (s *StaticSource) matches(entry StaticEntry, q string) bool {
	for _, word := range strings.Fields(strings.ToLower(entry.Title)) {
		if strings.HasPrefix(word, q) {
			return true
		}
	}
	for _, kw := range entry.Keywords {
		if strings.HasPrefix(strings.ToLower(kw), q) {
			return true
		}
	}
	return false
}

func (s *StaticSource) row(entry StaticEntry) suggest.Suggestion {
	action := entry.IntentAction
	if action == "" {
		action = suggest.ActionView
	}
	return suggest.Suggestion{
		Source:       s.component,
		Title:        entry.Title,
		Description:  entry.Description,
		Icon1:        s.icon,
		IntentAction: action,
		IntentData:   entry.IntentData,
		ShortcutID:   entry.ID,
	}
}

var _ suggest.Source = (*StaticSource)(nil)
