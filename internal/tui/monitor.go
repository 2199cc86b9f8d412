// Package tui provides a live terminal monitor for a running task: it
// consumes the task's progress stream, renders per-subtask and aggregate
// completion, and turns key presses into pause/resume/cancel commands.
// It is a pure consumer; closing it never affects execution.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskpilot/taskpilot/internal/control"
	"github.com/taskpilot/taskpilot/internal/domain"
	"github.com/taskpilot/taskpilot/internal/task"
)

// Handle is the slice of a task node the monitor needs. task.Task[N]
// satisfies it for every name type N.
type Handle interface {
	Name() string
	State() task.State
	SendCommand(cmd control.Command) error
	StatusRows() []task.Row
	Subscribe() (<-chan domain.Progress, func())
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	stateStyles = map[task.State]lipgloss.Style{
		task.StateRunning:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		task.StatePaused:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		task.StateCancelling: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		task.StateCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		task.StateCancelled:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		task.StateFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
	subtaskStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	doneMarkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
)

type (
	// snapshotMsg carries one aggregate snapshot from the progress stream.
	snapshotMsg domain.Progress
	// streamDoneMsg signals that the task reached a terminal state.
	streamDoneMsg struct{}
	// tickMsg refreshes the per-subtask rows between snapshots.
	tickMsg time.Time
)

// Model is the bubbletea model for the monitor.
type Model struct {
	handle    Handle
	stream    <-chan domain.Progress
	stop      func()
	bar       progress.Model
	aggregate domain.Progress
	rows      []task.Row
	state     task.State
	width     int
	finished  bool
}

// NewModel builds a monitor around an already-subscribed progress stream.
func NewModel(handle Handle) Model {
	stream, stop := handle.Subscribe()
	return Model{
		handle: handle,
		stream: stream,
		stop:   stop,
		bar:    progress.New(progress.WithDefaultGradient()),
		rows:   handle.StatusRows(),
		state:  handle.State(),
		width:  80,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), tick())
}

func (m Model) listen() tea.Cmd {
	return func() tea.Msg {
		p, ok := <-m.stream
		if !ok {
			return streamDoneMsg{}
		}
		return snapshotMsg(p)
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 8
		return m, nil

	case snapshotMsg:
		m.aggregate = domain.Progress(msg)
		m.refresh()
		return m, m.listen()

	case streamDoneMsg:
		m.finished = true
		m.refresh()
		return m, tea.Quit

	case tickMsg:
		m.refresh()
		if m.finished {
			return m, nil
		}
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "p":
			_ = m.handle.SendCommand(control.CommandPause)
		case "r":
			_ = m.handle.SendCommand(control.CommandResume)
		case "c":
			_ = m.handle.SendCommand(control.CommandCancel)
		case "q", "ctrl+c":
			m.stop()
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	state := m.state
	stateStyle, ok := stateStyles[state]
	if !ok {
		stateStyle = subtaskStyle
	}

	b.WriteString(titleStyle.Render(m.handle.Name()))
	b.WriteString("  ")
	b.WriteString(stateStyle.Render(state.String()))
	b.WriteString("\n\n")

	b.WriteString("  ")
	b.WriteString(m.bar.ViewAs(m.aggregate.Fraction()))
	b.WriteString("\n\n")

	for _, row := range m.rows {
		mark := " "
		switch {
		case row.Done:
			mark = doneMarkStyle.Render("✓")
		case row.Running:
			mark = "▶"
		}
		line := fmt.Sprintf("  %s %-20s %-8s %s", mark, row.Name, row.Weight, row.Progress)
		b.WriteString(subtaskStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.finished {
		b.WriteString(helpStyle.Render("press q to exit"))
	} else {
		b.WriteString(helpStyle.Render("p pause · r resume · c cancel · q quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m *Model) refresh() {
	m.rows = m.handle.StatusRows()
	m.state = m.handle.State()
}

// Run drives the monitor until the task finishes or the user quits.
func Run(handle Handle) error {
	p := tea.NewProgram(NewModel(handle))
	_, err := p.Run()
	return err
}
