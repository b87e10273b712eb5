// Package daemon implements the suggestd background process: a
// newline-delimited JSON protocol over a Unix socket, fronting one
// shared suggestion engine.
package daemon

import "github.com/runger/suggestd/internal/suggest"

// Protocol operations. One request per line, one response per line.
const (
	// OpQuery starts (or supersedes) a query on the connection's cursor.
	OpQuery = "query"

	// OpRefresh re-snapshots the cursor. Clients poll it while the
	// frame reports pending sources.
	OpRefresh = "refresh"

	// OpClick reports a click on a row by list position.
	OpClick = "click"

	// OpMoreVisible reports that the more row scrolled into view.
	OpMoreVisible = "more_visible"

	// OpClose closes the cursor, reporting how far the user looked.
	OpClose = "close"

	// OpStatus returns daemon health information.
	OpStatus = "status"
)

// Request is one client message.
type Request struct {
	Op    string `json:"op"`
	Query string `json:"query,omitempty"`

	// Position is the clicked list position for OpClick.
	Position int `json:"position,omitempty"`

	// MaxDisplayPos is the largest position actually rendered, for
	// OpClose. -1 means nothing attributable was shown.
	MaxDisplayPos int `json:"max_display_pos"`
}

// Response is one daemon message.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Frame *Frame `json:"frame,omitempty"`

	// NotifyIndex is the position the UI should draw attention to,
	// delivered at most once per query. -1 means none.
	NotifyIndex int `json:"notify_index"`

	// Reselect is the position to re-highlight after a click toggled
	// the expanded section. -1 means keep the current selection.
	Reselect int `json:"reselect"`

	Status *Status `json:"status,omitempty"`
}

// Frame is the wire form of a cursor snapshot.
type Frame struct {
	Items       []Row `json:"items"`
	IsPending   bool  `json:"is_pending"`
	MoreIndex   int   `json:"more_index"`
	ShowingMore bool  `json:"showing_more"`
}

// Row is the wire form of one suggestion.
type Row struct {
	Source      string `json:"source"`
	Format      string `json:"format,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Icon1       string `json:"icon1,omitempty"`
	Icon2       string `json:"icon2,omitempty"`

	IntentAction string `json:"intent_action"`
	IntentData   string `json:"intent_data,omitempty"`
	IntentQuery  string `json:"intent_query,omitempty"`

	Spinner     bool `json:"spinner,omitempty"`
	PinToBottom bool `json:"pin_to_bottom,omitempty"`
}

// Status reports daemon health for the status operation.
type Status struct {
	PID         int      `json:"pid"`
	Version     string   `json:"version"`
	UptimeSecs  int64    `json:"uptime_secs"`
	Connections int      `json:"connections"`
	Sources     []string `json:"sources"`
}

// wireRow flattens a suggestion for transport. The intent data id, if
// any, is folded into the data so clients never deal with escaping.
func wireRow(s suggest.Suggestion) Row {
	return Row{
		Source:       string(s.Source),
		Format:       s.Format,
		Title:        s.Title,
		Description:  s.Description,
		Icon1:        suggest.IconURI(s.Source, s.Icon1),
		Icon2:        suggest.IconURI(s.Source, s.Icon2),
		IntentAction: s.IntentAction,
		IntentData:   s.EffectiveIntentData(),
		IntentQuery:  s.IntentQuery,
		Spinner:      s.SpinnerWhileRefreshing,
		PinToBottom:  s.PinToBottom,
	}
}

func wireFrame(items []suggest.Suggestion, isPending bool, moreIndex int, showingMore bool) *Frame {
	rows := make([]Row, len(items))
	for i, s := range items {
		rows[i] = wireRow(s)
	}
	return &Frame{
		Items:       rows,
		IsPending:   isPending,
		MoreIndex:   moreIndex,
		ShowingMore: showingMore,
	}
}
