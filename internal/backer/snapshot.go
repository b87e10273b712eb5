package backer

import "github.com/runger/suggestd/internal/suggest"

// snapshotIter walks one promoted source's suggestions during a
// snapshot, remembering how many rows it has placed.
type snapshotIter struct {
	id          suggest.ComponentID
	suggestions []suggest.Suggestion
	pos         int
	displayed   int
}

func (it *snapshotIter) hasNext() bool {
	return it.pos < len(it.suggestions)
}

// Snapshot builds the display list from everything reported so far and
// returns it with the position of the more row (-1 when absent).
//
// List order: go-to-website, shortcuts, promoted source results mixed
// round-robin, then once the more section is due: search-the-web, the
// more row, corpus entries when expanded. The pinned web row goes last.
func (b *Backer) Snapshot(expandMore bool) ([]suggest.Suggestion, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var dest []suggest.Suggestion

	// Deduplication is by intent identity: a source result that the
	// shortcut section already shows is skipped.
	seen := make(map[string]bool, len(b.shortcuts)+2)
	if b.goToWebsite != nil {
		dest = append(dest, *b.goToWebsite)
		seen[b.goToWebsite.DedupKey()] = true
	}
	for _, s := range b.shortcuts {
		dest = append(dest, s)
		seen[s.DedupKey()] = true
	}
	if b.searchTheWeb != nil {
		seen[b.searchTheWeb.DedupKey()] = true
	}

	// Shortcuts eat into the promoted slots; promoted sources split
	// whatever is left.
	slots := b.maxPromoted - len(b.shortcuts)
	if slots < 0 {
		slots = 0
	}

	iters := b.promotedItersLocked()
	if len(iters) > 0 && slots > 0 {
		// First pass: a fair chunk each, sized for the whole promoted
		// set, so one eager source cannot claim the slots a laggard
		// may still fill before the deadline.
		chunk := slots / len(b.promoted)
		if chunk < 1 {
			chunk = 1
		}
		dest, slots = fillRoundRobin(dest, iters, chunk, slots, seen)

		// Second pass, only once no more promoted reports can land:
		// sources with leftovers split the slots the first pass could
		// not fill.
		if b.showMoreLocked() {
			var remaining []*snapshotIter
			for _, it := range iters {
				if it.hasNext() {
					remaining = append(remaining, it)
				}
			}
			if slots > 0 && len(remaining) > 0 {
				chunk = slots / len(remaining)
				if chunk < 1 {
					chunk = 1
				}
				dest, slots = fillRoundRobin(dest, remaining, chunk, slots, seen)
			}
		}
	}

	displayed := make(map[suggest.ComponentID]int, len(iters))
	for _, it := range iters {
		displayed[it.id] = it.displayed
	}

	b.moreIndex = -1
	if b.showMoreLocked() && b.factory != nil {
		if b.searchTheWeb != nil {
			dest = append(dest, *b.searchTheWeb)
		}

		stats := b.sourceStatsLocked(displayed)
		pending := len(b.reported) < len(b.sources)

		b.moreIndex = len(dest)
		dest = append(dest, b.factory.MoreEntry(expandMore, pending, stats))
		if expandMore {
			for _, stat := range stats {
				dest = append(dest, b.factory.CorpusEntry(stat, pending))
			}
		}
	}

	if b.pinToBottom != nil {
		dest = append(dest, *b.pinToBottom)
	}

	return dest, b.moreIndex
}

// promotedItersLocked returns iterators over the promoted sources that
// reported in time with at least one suggestion, in arrival order.
func (b *Backer) promotedItersLocked() []*snapshotIter {
	var iters []*snapshotIter
	for _, id := range b.reportedOrder {
		if !b.promoted[id] || !b.reportedBeforeDeadline[id] {
			continue
		}
		res := b.reported[id].response
		if len(res.Suggestions) == 0 {
			continue
		}
		iters = append(iters, &snapshotIter{id: id, suggestions: res.Suggestions})
	}
	return iters
}

// fillRoundRobin gives each iterator up to chunk slots, skipping rows
// already displayed under the same intent identity. A skipped
// duplicate still spends its share of the chunk; it only keeps the
// display slot.
func fillRoundRobin(dest []suggest.Suggestion, iters []*snapshotIter, chunk, slots int, seen map[string]bool) ([]suggest.Suggestion, int) {
	for _, it := range iters {
		taken := 0
		for taken < chunk && slots > 0 && it.hasNext() {
			s := it.suggestions[it.pos]
			it.pos++
			taken++
			if seen[s.DedupKey()] {
				continue
			}
			seen[s.DedupKey()] = true
			dest = append(dest, s)
			it.displayed++
			slots--
		}
		if slots == 0 {
			break
		}
	}
	return dest, slots
}

// sourceStatsLocked summarizes every source for the more section.
// Promoted sources that made the deadline count only results beyond
// the ones already displayed, and disappear entirely once exhausted.
func (b *Backer) sourceStatsLocked(displayed map[suggest.ComponentID]int) []SourceStat {
	var stats []SourceStat
	for _, src := range b.sources {
		id := src.ComponentID()
		rep, ok := b.reported[id]

		if !ok {
			stats = append(stats, SourceStat{
				Source:   id,
				Label:    src.Label(),
				Icon:     src.Icon(),
				Promoted: b.promoted[id],
			})
			continue
		}

		res := rep.response
		if b.promoted[id] && b.reportedBeforeDeadline[id] {
			shown := displayed[id]
			remaining := res.Count - shown
			if b.pinToBottom != nil && id == b.webComponent {
				// The pinned row is on screen even though it was never
				// handed out by an iterator.
				remaining--
			}
			if remaining <= 0 {
				continue
			}
			limit := res.QueryLimit - shown
			if limit < 0 {
				limit = 0
			}
			stats = append(stats, SourceStat{
				Source:     id,
				Label:      src.Label(),
				Icon:       src.Icon(),
				Promoted:   true,
				Responded:  true,
				NumResults: remaining,
				QueryLimit: limit,
			})
			continue
		}

		stats = append(stats, SourceStat{
			Source:     id,
			Label:      src.Label(),
			Icon:       src.Icon(),
			Responded:  true,
			NumResults: res.Count,
			QueryLimit: res.QueryLimit,
		})
	}
	return stats
}
