package suggest

// SessionStats is what a finished search session reports to the
// shortcut repository: the final query, the clicked suggestion (if
// any), and every source the user actually saw results from.
type SessionStats struct {
	Query string

	// Clicked is nil when the session ended without a click.
	Clicked *Suggestion

	// SourceImpressions lists sources whose results were displayed,
	// without duplicates.
	SourceImpressions []ComponentID
}

// NewSessionStats builds stats from an impression set, deduplicating
// while preserving insertion order.
func NewSessionStats(query string, clicked *Suggestion, impressions []ComponentID) SessionStats {
	seen := make(map[ComponentID]struct{}, len(impressions))
	out := make([]ComponentID, 0, len(impressions))
	for _, id := range impressions {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return SessionStats{Query: query, Clicked: clicked, SourceImpressions: out}
}

// Empty reports whether the stats carry nothing worth logging.
func (s *SessionStats) Empty() bool {
	return s.Clicked == nil && len(s.SourceImpressions) == 0
}
