package picker

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/runger/suggestd/internal/engine"
)

// pollInterval is how often the picker re-snapshots the cursor while
// sources are still reporting.
const pollInterval = 80 * time.Millisecond

// pollMsg fires a cursor refresh; only the latest poll id is honored.
type pollMsg struct {
	id uint64
}

// initMsg is sent by Init() to start the first query via Update(),
// ensuring state mutations are visible to the Bubble Tea runtime.
type initMsg struct{}

// Model is the Bubble Tea model for the search picker TUI.
type Model struct {
	eng        Engine
	launcher   *Launcher
	input      textinput.Model
	spin       spinner.Model
	maxVisible int

	cursor    Cursor
	frame     engine.Frame
	selection int
	scroll    int

	// maxSeen is the largest list position actually rendered; it is
	// what the cursor gets on close for impression attribution.
	maxSeen int

	// pollID invalidates stale poll timers after a new query.
	pollID uint64

	launch []string
	err    error
	width  int
}

// NewModel creates a picker over the given engine. maxVisible caps the
// rows rendered at once.
func NewModel(eng Engine, launcher *Launcher, maxVisible int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Search"
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	if maxVisible < 1 {
		maxVisible = 12
	}
	return Model{
		eng:        eng,
		launcher:   launcher,
		input:      ti,
		spin:       sp,
		maxVisible: maxVisible,
		selection:  -1,
		maxSeen:    -1,
	}
}

// LaunchCommand returns the argv of the clicked row's opener, or nil
// when the picker was cancelled. The caller runs it after the TUI has
// released the terminal.
func (m Model) LaunchCommand() []string {
	return m.launch
}

// Err returns the error that ended the picker, if any.
func (m Model) Err() error {
	return m.err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		func() tea.Msg { return initMsg{} },
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case initMsg:
		return m, m.startQuery()

	case pollMsg:
		return m.handlePoll(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.closeCursor()
		return m, tea.Quit

	case tea.KeyEnter:
		return m.handleEnter()

	case tea.KeyUp:
		if m.selection > 0 {
			m.selection--
			m.updateViewport()
		}
		return m, nil

	case tea.KeyDown:
		if m.selection < len(m.frame.Items)-1 {
			m.selection++
			m.updateViewport()
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		return m, tea.Batch(cmd, m.startQuery())
	}
	return m, cmd
}

// handleEnter clicks the selected row. The more row toggles in place;
// anything launchable ends the picker.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	if m.cursor == nil || m.selection < 0 || m.selection >= len(m.frame.Items) {
		return m, nil
	}

	if m.selection == m.frame.MoreIndex && m.frame.MoreIndex >= 0 {
		reselect := m.cursor.Click(m.selection)
		m.refreshFrame()
		if reselect >= 0 && reselect < len(m.frame.Items) {
			m.selection = reselect
			m.updateViewport()
		}
		return m, nil
	}

	row := m.frame.Items[m.selection]
	argv, err := m.launcher.Command(row)
	if err != nil {
		m.err = err
		return m, nil
	}
	if argv == nil {
		// Corpus rows and the like have nothing to launch.
		return m, nil
	}

	m.cursor.Click(m.selection)
	m.launch = argv
	m.closeCursor()
	return m, tea.Quit
}

// handlePoll re-snapshots the cursor and keeps polling while sources
// are still reporting.
func (m Model) handlePoll(msg pollMsg) (tea.Model, tea.Cmd) {
	if msg.id != m.pollID || m.cursor == nil {
		return m, nil // Stale poll timer; ignore.
	}

	pending, _ := m.cursor.PostRefresh()
	m.refreshFrame()
	if pending {
		return m, m.schedulePoll()
	}
	return m, nil
}

// startQuery supersedes the current cursor with one for the input's
// current value.
func (m *Model) startQuery() tea.Cmd {
	m.closeCursor()
	m.cursor = m.eng.Query(m.input.Value())
	if m.cursor == nil {
		m.err = errors.New("engine is shut down")
		return tea.Quit
	}
	m.selection = 0
	m.scroll = 0
	m.refreshFrame()
	return m.schedulePoll()
}

// closeCursor ends the current cursor, attributing the rows that were
// actually on screen.
func (m *Model) closeCursor() {
	if m.cursor == nil {
		return
	}
	m.cursor.PreClose(m.maxSeen)
	m.cursor = nil
	m.maxSeen = -1
}

// schedulePoll arms the next poll tick and invalidates older ones.
func (m *Model) schedulePoll() tea.Cmd {
	m.pollID++
	id := m.pollID
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollMsg{id: id}
	})
}

// refreshFrame pulls the cursor's current snapshot and reconciles the
// selection and viewport with it.
func (m *Model) refreshFrame() {
	m.frame = m.cursor.Frame()
	n := len(m.frame.Items)
	if n == 0 {
		m.selection = -1
		m.scroll = 0
		return
	}
	if m.selection < 0 {
		m.selection = 0
	}
	if m.selection >= n {
		m.selection = n - 1
	}
	m.updateViewport()
}

// updateViewport scrolls the window to keep the selection visible and
// records what the user has now seen.
func (m *Model) updateViewport() {
	if m.selection >= 0 {
		if m.selection < m.scroll {
			m.scroll = m.selection
		}
		if m.selection >= m.scroll+m.maxVisible {
			m.scroll = m.selection - m.maxVisible + 1
		}
	}

	bottom := m.scroll + m.maxVisible - 1
	if bottom >= len(m.frame.Items) {
		bottom = len(m.frame.Items) - 1
	}
	if bottom > m.maxSeen {
		m.maxSeen = bottom
	}
	if m.cursor != nil && m.frame.MoreIndex >= 0 && m.frame.MoreIndex <= bottom {
		m.cursor.ThreshHit()
	}
}

// --- View rendering ---

var (
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	descStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteRune('\n')

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		return b.String()
	}

	items := m.frame.Items
	if len(items) == 0 {
		if m.frame.IsPending {
			b.WriteString(dimStyle.Render(m.spin.View() + "Searching..."))
		} else {
			b.WriteString(dimStyle.Render("No results"))
		}
		return b.String()
	}

	end := m.scroll + m.maxVisible
	if end > len(items) {
		end = len(items)
	}
	for i := m.scroll; i < end; i++ {
		b.WriteString(m.renderRow(i))
		b.WriteRune('\n')
	}

	if m.frame.IsPending {
		b.WriteString(dimStyle.Render(m.spin.View() + "searching"))
	}
	return b.String()
}

// renderRow renders one list row with selection marker.
func (m Model) renderRow(i int) string {
	row := m.frame.Items[i]

	width := m.width
	if width <= 0 {
		width = 80
	}

	// Truncate before styling so escape sequences are never split.
	display := MiddleTruncate(CleanText(row.Title), width-4)
	if row.Description != "" {
		desc := MiddleTruncate(CleanText(row.Description), width/2)
		display += "  " + descStyle.Render(desc)
	}

	if i == m.selection {
		return selectedStyle.Render("> ") + display
	}
	return normalStyle.Render("  ") + display
}
