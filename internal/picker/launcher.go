package picker

import (
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/runger/suggestd/internal/suggest"
)

// Launcher turns clicked suggestions into opener invocations.
type Launcher struct {
	// Opener is the command template; {url} is replaced with the
	// launch target. Without a placeholder the target is appended.
	Opener string

	// SearchURL is the web search page template; {query} is replaced
	// with the escaped query for web search rows.
	SearchURL string
}

// Command returns the argv that launches the row. A nil argv with a
// nil error means the row is not launchable (corpus and more rows).
func (l *Launcher) Command(row suggest.Suggestion) ([]string, error) {
	target, err := l.target(row)
	if err != nil || target == "" {
		return nil, err
	}

	parts, err := shlex.Split(l.Opener)
	if err != nil {
		return nil, fmt.Errorf("invalid opener template: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty opener template")
	}

	replaced := false
	for i, p := range parts {
		if strings.Contains(p, "{url}") {
			parts[i] = strings.ReplaceAll(p, "{url}", target)
			replaced = true
		}
	}
	if !replaced {
		parts = append(parts, target)
	}
	return parts, nil
}

// Launch starts the opener for the row without waiting for it.
func (l *Launcher) Launch(row suggest.Suggestion) error {
	argv, err := l.Command(row)
	if err != nil {
		return err
	}
	if argv == nil {
		return nil
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch %s: %w", argv[0], err)
	}
	// Reap the opener in the background so it never lingers as a zombie.
	go cmd.Wait()
	return nil
}

func (l *Launcher) target(row suggest.Suggestion) (string, error) {
	switch row.IntentAction {
	case suggest.ActionView:
		data := row.EffectiveIntentData()
		if data == "" {
			return "", fmt.Errorf("row %q has no target", row.Title)
		}
		return data, nil

	case suggest.ActionWebSearch:
		if l.SearchURL == "" {
			return "", fmt.Errorf("no search_url configured")
		}
		return strings.ReplaceAll(l.SearchURL, "{query}", url.QueryEscape(row.IntentQuery)), nil

	default:
		return "", nil
	}
}
