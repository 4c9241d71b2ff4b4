package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openics/inflow/internal/event"
)

// eventMsg wraps a bus event for the bubbletea update loop.
type eventMsg struct {
	event event.Event
}

// Listen bridges the event bus into a channel the model can consume.
// Events are dropped rather than blocking publishers when the UI falls
// behind.
func Listen(bus *event.Bus) <-chan event.Event {
	ch := make(chan event.Event, 64)
	bus.SubscribeAll(func(e event.Event) {
		select {
		case ch <- e:
		default:
		}
	})
	return ch
}

// Model is the watch-box status panel: a live view of a watched
// directory fed by bus events.
type Model struct {
	directory    string
	stableTarget int
	events       <-chan event.Event

	spinner spinner.Model
	styles  Styles
	width   int

	watching     bool
	count        int
	stableRounds int
	status       string
	lastFinished string
	failed       string
	quitting     bool
}

// New creates a watch-box model for directory. stableTarget is the
// number of unchanged polls that declare a transfer finished; events is
// the channel from Listen.
func New(directory string, stableTarget int, events <-chan event.Event) Model {
	styles := DefaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Model{
		directory:    directory,
		stableTarget: stableTarget,
		events:       events,
		spinner:      sp,
		styles:       styles,
		status:       "Starting...",
	}
}

// waitForEvent returns a command that delivers the next bus event.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			return nil
		}
		return eventMsg{event: e}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(msg.event)
		return m, m.waitForEvent()
	}

	return m, nil
}

// apply folds a bus event into the displayed state.
func (m *Model) apply(e event.Event) {
	switch ev := e.(type) {
	case event.WatchStartedEvent:
		if ev.Directory != m.directory {
			return
		}
		m.watching = true
		m.failed = ""
		m.status = "Watching"

	case event.WatchStoppedEvent:
		if ev.Directory != m.directory {
			return
		}
		m.watching = false
		if m.failed == "" {
			m.status = "Stopped"
		}

	case event.FileCountChangedEvent:
		if ev.Directory != m.directory {
			return
		}
		m.count = ev.Count
		m.stableRounds = 1
		m.status = fmt.Sprintf("Receiving (%d files)", ev.Count)

	case event.ReceiveFinishedEvent:
		if ev.Directory != m.directory {
			return
		}
		m.stableRounds = m.stableTarget
		m.lastFinished = fmt.Sprintf("%d files (%d new)", ev.FinalCount, len(ev.NewFiles))
		m.status = "Receive finished"

	case event.WatchFailedEvent:
		if ev.Directory != m.directory {
			return
		}
		m.watching = false
		m.failed = ev.Err.Error()
		m.status = "Watch failed"

	case event.ReceiverStatusEvent:
		m.status = ev.Status
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var rows []string
	rows = append(rows, m.row("Directory", m.directory))
	rows = append(rows, m.row("Files", fmt.Sprintf("%d", m.count)))
	rows = append(rows, m.row("Stability", m.stabilityGauge()))
	rows = append(rows, m.row("Status", m.statusLine()))
	if m.lastFinished != "" {
		rows = append(rows, m.row("Last transfer", m.lastFinished))
	}
	if m.failed != "" {
		rows = append(rows, m.row("Error", m.styles.Error.Render(m.failed)))
	}

	body := strings.Join(rows, "\n")
	box := m.styles.Box.Render(m.styles.Title.Render("inflow") + "\n" + body)
	help := m.styles.Muted.Render("q to quit")
	return box + "\n" + help + "\n"
}

func (m Model) row(label, value string) string {
	return m.styles.Label.Render(fmt.Sprintf("%-14s", label)) + value
}

// stabilityGauge renders the plateau progress as filled and empty dots.
func (m Model) stabilityGauge() string {
	if m.stableTarget <= 0 {
		return ""
	}
	filled := m.stableRounds
	if filled > m.stableTarget {
		filled = m.stableTarget
	}
	gauge := strings.Repeat("●", filled) + strings.Repeat("○", m.stableTarget-filled)
	if filled == m.stableTarget {
		return m.styles.Success.Render(gauge)
	}
	return gauge
}

func (m Model) statusLine() string {
	if m.failed != "" {
		return m.styles.Error.Render(m.status)
	}
	if m.watching {
		return m.spinner.View() + " " + m.status
	}
	return m.styles.Muted.Render(m.status)
}

// Styles holds the lipgloss styles for the watch-box panel.
type Styles struct {
	Box     lipgloss.Style
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Spinner lipgloss.Style
}

// DefaultStyles returns the default watch-box styling.
func DefaultStyles() Styles {
	return Styles{
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Spinner: lipgloss.NewStyle().Foreground(lipgloss.Color("62")),
	}
}
