package shortcuts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/runger/suggestd/internal/suggest"
)

// shortcutColumns is the projection used everywhere a shortcut row is
// read back as a suggestion.
const shortcutColumns = `
	source, format, title, description, icon1, icon2,
	intent_action, intent_data, intent_query, intent_extradata,
	intent_component, shortcut_id, spinner_while_refreshing`

// ReportStats records everything a finished session learned: the
// clicked suggestion (as a shortcut plus a clicklog hit) and one
// impression event per displayed source. Empty stats are a no-op and
// touch nothing.
func (r *Repository) ReportStats(ctx context.Context, stats suggest.SessionStats, now time.Time) error {
	if stats.Empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin stats transaction: %w", err)
	}
	defer tx.Rollback()

	if c := stats.Clicked; c != nil && !c.ShortcutDisabled() {
		if err := logClicked(ctx, tx, stats.Query, c, now); err != nil {
			return err
		}
	}

	for _, component := range stats.SourceImpressions {
		clicks := 0
		if stats.Clicked != nil && stats.Clicked.Source == component {
			clicks = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sourceeventlog (component, time, click_count, impression_count)
			VALUES (?, ?, ?, 1)
		`, string(component), now.UnixMilli(), clicks)
		if err != nil {
			return fmt.Errorf("failed to log source event: %w", err)
		}
	}

	// Purge stale events and rebuild the totals the ranking query
	// reads. Done inline rather than by trigger so that the totals
	// table never drifts from the event log.
	cutoff := now.Add(-MaxSourceEventAge).UnixMilli()
	if _, err := tx.ExecContext(ctx, `DELETE FROM sourceeventlog WHERE time < ?`, cutoff); err != nil {
		return fmt.Errorf("failed to purge source events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sourcetotals`); err != nil {
		return fmt.Errorf("failed to reset source totals: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sourcetotals (component, total_clicks, total_impressions)
		SELECT component, SUM(click_count), SUM(impression_count)
		FROM sourceeventlog GROUP BY component
	`)
	if err != nil {
		return fmt.Errorf("failed to rebuild source totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stats: %w", err)
	}
	return nil
}

// logClicked upserts the shortcut row and appends a clicklog hit. The
// clicklog insert trigger purges hits older than MaxStatAge.
func logClicked(ctx context.Context, tx *sql.Tx, query string, c *suggest.Suggestion, now time.Time) error {
	icon2 := suggest.IconURI(c.Source, c.Icon2)
	if c.SpinnerWhileRefreshing {
		// Persist the spinner so the next display shows progress while
		// the refresher revalidates the shortcut.
		icon2 = suggest.IconSpinner
	}

	spinner := 0
	if c.SpinnerWhileRefreshing {
		spinner = 1
	}

	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO shortcuts (
			intent_key, source, format, title, description, icon1, icon2,
			intent_action, intent_data, intent_query, intent_extradata,
			intent_component, shortcut_id, spinner_while_refreshing
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.IntentKey(), string(c.Source), c.Format, c.Title, c.Description,
		suggest.IconURI(c.Source, c.Icon1), icon2,
		c.IntentAction, c.EffectiveIntentData(), c.IntentQuery,
		c.IntentExtraData, c.IntentComponent, c.ShortcutID, spinner,
	)
	if err != nil {
		return fmt.Errorf("failed to store shortcut: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO clicklog (intent_key, query, hit_time) VALUES (?, ?, ?)
	`, c.IntentKey(), query, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to log click: %w", err)
	}
	return nil
}

// ShortcutsForQuery returns up to maxShortcuts previously clicked
// suggestions whose click queries start with query, best first.
//
// Ranking is hits weighted by recency of the latest hit: a shortcut
// clicked often and recently beats one clicked often but long ago.
// Only clicks younger than MaxStatAge contribute.
func (r *Repository) ShortcutsForQuery(ctx context.Context, query string, maxShortcuts int, now time.Time) ([]suggest.Suggestion, error) {
	cutoff := now.Add(-MaxStatAge).UnixMilli()
	ageSeconds := int64(MaxStatAge / time.Second)

	// The prefix range [query, nextString(query)) rides the clicklog
	// query index instead of a LIKE scan. The empty query matches
	// everything.
	where := "clicklog.hit_time >= ?"
	args := []any{cutoff}
	if query != "" {
		where += " AND clicklog.query >= ? AND clicklog.query < ?"
		args = append(args, query, nextString(query))
	}

	args = append(args, cutoff, ageSeconds, maxShortcuts)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT s.intent_key, %s
		FROM clicklog
		INNER JOIN shortcuts AS s ON clicklog.intent_key = s.intent_key
		WHERE %s
		GROUP BY clicklog.intent_key
		ORDER BY COUNT(clicklog._id) * ((MAX(clicklog.hit_time) - ?) / ?) DESC
		LIMIT ?
	`, shortcutColumns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shortcuts: %w", err)
	}
	defer rows.Close()

	var out []suggest.Suggestion
	for rows.Next() {
		var intentKey string
		s, err := scanShortcut(rows, &intentKey)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shortcuts: %w", err)
	}
	return out, nil
}

// scanShortcut reads one shortcut projection row into a suggestion.
func scanShortcut(rows *sql.Rows, intentKey *string) (suggest.Suggestion, error) {
	var s suggest.Suggestion
	var source string
	var spinner int
	err := rows.Scan(intentKey, &source, &s.Format, &s.Title, &s.Description,
		&s.Icon1, &s.Icon2, &s.IntentAction, &s.IntentData, &s.IntentQuery,
		&s.IntentExtraData, &s.IntentComponent, &s.ShortcutID, &spinner)
	if err != nil {
		return s, fmt.Errorf("failed to scan shortcut: %w", err)
	}
	s.Source = suggest.ComponentID(source)
	s.SpinnerWhileRefreshing = spinner != 0
	return s, nil
}

// SourceRanking returns all sources with recorded impressions, ordered
// by estimated click-through rate. The rate is seeded with
// DefaultPriorClicks/DefaultPriorImpressions so a source with two
// clicks out of two impressions does not leapfrog a proven one.
func (r *Repository) SourceRanking(ctx context.Context) ([]suggest.ComponentID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT component
		FROM sourcetotals
		ORDER BY (1000 * (total_clicks + ?)) / (total_impressions + ?) DESC
	`, DefaultPriorClicks, DefaultPriorImpressions)
	if err != nil {
		return nil, fmt.Errorf("failed to query source ranking: %w", err)
	}
	defer rows.Close()

	var out []suggest.ComponentID
	for rows.Next() {
		var component string
		if err := rows.Scan(&component); err != nil {
			return nil, fmt.Errorf("failed to scan source ranking: %w", err)
		}
		out = append(out, suggest.ComponentID(component))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source ranking: %w", err)
	}
	return out, nil
}

// RefreshShortcut applies the outcome of revalidating a shortcut
// against its source. A nil refreshed suggestion means the shortcut is
// gone: the row is deleted and the delete trigger drops its clicks.
// Otherwise only the presentation is replaced: the intent columns stay
// as clicked, so the row keeps its identity under its intent key.
func (r *Repository) RefreshShortcut(ctx context.Context, source suggest.ComponentID, shortcutID string, refreshed *suggest.Suggestion) error {
	if refreshed == nil {
		_, err := r.db.ExecContext(ctx, `
			DELETE FROM shortcuts WHERE shortcut_id = ? AND source = ?
		`, shortcutID, string(source))
		if err != nil {
			return fmt.Errorf("failed to delete invalid shortcut: %w", err)
		}
		return nil
	}

	icon2 := suggest.IconURI(refreshed.Source, refreshed.Icon2)
	if refreshed.SpinnerWhileRefreshing {
		icon2 = suggest.IconSpinner
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE shortcuts SET
			format = ?, title = ?, description = ?, icon1 = ?, icon2 = ?
		WHERE shortcut_id = ? AND source = ?
	`,
		refreshed.Format, refreshed.Title, refreshed.Description,
		suggest.IconURI(refreshed.Source, refreshed.Icon1), icon2,
		shortcutID, string(source),
	)
	if err != nil {
		return fmt.Errorf("failed to update refreshed shortcut: %w", err)
	}
	return nil
}

// HasHistory reports whether any shortcuts are stored. The shortcuts
// table is the one the user sees; clicks without a surviving shortcut
// are invisible history.
func (r *Repository) HasHistory(ctx context.Context) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM shortcuts)`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check history: %w", err)
	}
	return n != 0, nil
}

// ClearHistory wipes all recorded behavior: shortcuts, clicks, source
// events and totals.
func (r *Repository) ClearHistory(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin clear transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM clicklog`,
		`DELETE FROM shortcuts`,
		`DELETE FROM sourceeventlog`,
		`DELETE FROM sourcetotals`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	return nil
}
