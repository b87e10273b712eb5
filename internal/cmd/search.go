package cmd

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/sys/execabs"

	"github.com/runger/suggestd/internal/config"
	"github.com/runger/suggestd/internal/daemon"
	"github.com/runger/suggestd/internal/engine"
	"github.com/runger/suggestd/internal/log"
	"github.com/runger/suggestd/internal/picker"
)

var (
	searchPlain bool
	searchWait  time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search suggestion sources",
	Long: `Open the interactive picker, seeded with the given query.

With --plain (or when stdout is not a terminal) the sources are queried
once and the settled results printed, one row per line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchPlain, "plain", false, "print results instead of opening the picker")
	searchCmd.Flags().DurationVar(&searchWait, "wait", 2*time.Second, "how long --plain waits for slow sources")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) == 1 {
		query = args[0]
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// The picker owns the terminal; engine logs would corrupt it.
	manager, repo, err := daemon.BuildEngine(cfg, paths, log.Nop())
	if err != nil {
		return err
	}
	defer repo.Close()
	defer manager.Close()

	if searchPlain {
		return plainSearch(manager, query)
	}

	tty, err := openTTY()
	if err != nil {
		// No terminal to draw on; behave like --plain.
		return plainSearch(manager, query)
	}
	defer tty.Close()

	lipgloss.SetColorProfile(termenv.NewOutput(tty).ColorProfile())

	launcher := &picker.Launcher{
		Opener:    cfg.Picker.Opener,
		SearchURL: cfg.Picker.SearchURL,
	}
	model := picker.NewModel(picker.NewEngine(manager), launcher, cfg.Picker.MaxVisibleRows)

	prog := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(tty),
		tea.WithOutput(tty),
	)
	if query != "" {
		// Seed the input before the first frame renders.
		go func() {
			prog.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(query)})
		}()
	}

	final, err := prog.Run()
	if err != nil {
		return err
	}

	m, ok := final.(picker.Model)
	if !ok {
		return nil
	}
	if m.Err() != nil {
		return m.Err()
	}

	// Launch after the TUI has released the terminal.
	if argv := m.LaunchCommand(); argv != nil {
		proc := execabs.Command(argv[0], argv[1:]...)
		if err := proc.Start(); err != nil {
			return fmt.Errorf("failed to launch %s: %w", argv[0], err)
		}
		_ = proc.Process.Release()
	}
	return nil
}

// plainSearch runs one query, waits for the sources to settle, and
// prints the resulting rows.
func plainSearch(manager *engine.Manager, query string) error {
	cursor := manager.Query(query)
	if cursor == nil {
		return fmt.Errorf("engine is shut down")
	}

	deadline := time.After(searchWait)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

settle:
	for {
		select {
		case <-deadline:
			break settle
		case <-ticker.C:
			if pending, _ := cursor.PostRefresh(); !pending {
				break settle
			}
		}
	}

	frame := cursor.Frame()
	width := getTermWidth()
	shown := 0
	for i, row := range frame.Items {
		if i == frame.MoreIndex {
			continue // interactive affordance, nothing to print
		}
		fmt.Println(formatPlainRow(row.Title, row.Description, row.EffectiveIntentData(), width))
		shown++
	}
	if shown == 0 {
		fmt.Printf("%sNo results%s\n", colorDim, colorReset)
	}

	cursor.PreClose(len(frame.Items) - 1)
	return nil
}

// formatPlainRow lays out one result line within the terminal width.
func formatPlainRow(title, description, target string, width int) string {
	line := colorBold + picker.CleanText(title) + colorReset
	rest := ""
	if description != "" {
		rest = "  " + picker.CleanText(description)
	}
	if target != "" {
		rest += "  " + target
	}
	if rest != "" {
		budget := width - runewidth.StringWidth(title) - 2
		if budget < 10 {
			budget = 10
		}
		line += colorDim + picker.MiddleTruncate(rest, budget) + colorReset
	}
	return line
}

// openTTY opens the controlling terminal for the picker so stdout stays
// clean for shell pipelines.
func openTTY() (*os.File, error) {
	return os.OpenFile("/dev/tty", os.O_RDWR, 0)
}
