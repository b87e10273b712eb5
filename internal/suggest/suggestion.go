// Package suggest defines the data model shared by every layer of the
// suggestion engine: suggestions, sources, source responses and the
// session statistics reported when a search session ends.
package suggest

import (
	"net/url"
	"strings"
)

// ComponentID identifies a suggestion source. It is the stable name a
// source is registered, ranked and logged under.
type ComponentID string

// Well-known intent actions produced by the engine itself.
const (
	// ActionWebSearch submits the suggestion's intent query to the web
	// search source.
	ActionWebSearch = "suggestd.action.web_search"

	// ActionView opens the suggestion's intent data (typically a URL).
	ActionView = "suggestd.action.view"

	// ActionChangeSource switches the search UI to a single corpus. The
	// intent data carries the target source's component id.
	ActionChangeSource = "suggestd.action.change_source"

	// ActionNone marks rows that only toggle UI state, such as the
	// "more results" expander.
	ActionNone = "suggestd.action.none"
)

// NeverMakeShortcut is the shortcut id a source sets on a suggestion
// that must not be recorded as a shortcut when clicked.
const NeverMakeShortcut = "_-1"

// Display formats. An empty format means plain text.
const (
	FormatPlain = ""
	FormatHTML  = "html"
)

// Icon URIs for the engine's built-in artwork. Clients map these to
// whatever assets they ship.
const (
	IconMore    = "resource://suggestd/more"
	IconSpinner = "resource://suggestd/spinner"
	IconWeb     = "resource://suggestd/web"
)

// Suggestion is a single row a source (or the engine itself) offers for
// a query. Treat values as immutable once built; the aggregation layers
// share them freely across goroutines.
type Suggestion struct {
	// Source is the component id of the source that produced the row.
	Source ComponentID

	Format      string
	Title       string
	Description string

	// Icon1 and Icon2 are left and right icon references, either a full
	// URI or a bare source-resource id (see IconURI).
	Icon1 string
	Icon2 string

	IntentAction string
	IntentData   string

	// IntentDataID, when non-empty, is appended to IntentData as an
	// escaped path segment (see EffectiveIntentData).
	IntentDataID    string
	IntentQuery     string
	IntentExtraData string
	IntentComponent string

	// ShortcutID controls shortcutting: empty means the click itself
	// identifies the shortcut, NeverMakeShortcut suppresses it, anything
	// else is a source-chosen id revalidated on reuse.
	ShortcutID string

	// SpinnerWhileRefreshing asks the UI to show a progress spinner in
	// the icon2 slot while the shortcut is being revalidated.
	SpinnerWhileRefreshing bool

	// PinToBottom marks the web source's trailing row ("search the web
	// for ...") that is always displayed last.
	PinToBottom bool

	BackgroundColor string
}

// EffectiveIntentData returns the intent data with the data id, if any,
// appended as an escaped path segment.
func (s *Suggestion) EffectiveIntentData() string {
	if s.IntentDataID == "" {
		return s.IntentData
	}
	return s.IntentData + "/" + url.PathEscape(s.IntentDataID)
}

// IntentKey returns the identity used to store the suggestion as a
// shortcut. Two clicks with the same key update one shortcut row.
func (s *Suggestion) IntentKey() string {
	var b strings.Builder
	b.WriteString(string(s.Source))
	b.WriteString("#")
	b.WriteString(s.EffectiveIntentData())
	b.WriteString("#")
	b.WriteString(s.IntentAction)
	b.WriteString("#")
	b.WriteString(s.IntentQuery)
	return b.String()
}

// DedupKey returns the identity used to suppress duplicate rows in an
// aggregated result list.
func (s *Suggestion) DedupKey() string {
	return s.IntentAction + "#" + s.EffectiveIntentData()
}

// ShortcutDisabled reports whether the suggestion opted out of
// shortcutting.
func (s *Suggestion) ShortcutDisabled() bool {
	return s.ShortcutID == NeverMakeShortcut
}

// IconURI resolves an icon reference from source into a URI. A bare
// numeric id becomes resource://<source>/<id>; "" and "0" mean no icon;
// anything else is already a URI and passes through.
func IconURI(source ComponentID, icon string) string {
	if icon == "" || icon == "0" {
		return ""
	}
	if icon[0] >= '0' && icon[0] <= '9' {
		return "resource://" + string(source) + "/" + icon
	}
	return icon
}
