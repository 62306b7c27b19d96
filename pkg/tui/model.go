package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"imgfetch/pkg/batch"
	"imgfetch/pkg/models"
	"imgfetch/pkg/notify"
)

const (
	maxNotices  = 5
	maxBarWidth = 60
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")).Bold(true)
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#39FF14")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0040")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
)

// SnapshotMsg carries the latest batch state into the program
type SnapshotMsg struct {
	Snapshot batch.Snapshot
}

// NoticeMsg carries a user-facing notice into the program
type NoticeMsg struct {
	Notice notify.Notice
}

// Model renders the progress of one batch job
type Model struct {
	query    string
	snapshot batch.Snapshot
	notices  []notify.Notice
	stopping bool

	progress progress.Model
	spinner  spinner.Model
	onCancel func()
}

// NewModel creates a model for query. onCancel is invoked from a command
// goroutine when the user asks to stop a running job.
func NewModel(query string, onCancel func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF00FF"))

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return Model{
		query:    query,
		snapshot: batch.Snapshot{Query: query, Status: models.StatusIdle},
		progress: p,
		spinner:  s,
		onCancel: onCancel,
	}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Snapshot returns the last batch state the model received
func (m Model) Snapshot() batch.Snapshot {
	return m.snapshot
}

// Update handles incoming messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.progress.Width = min(msg.Width-4, maxBarWidth)
		if m.progress.Width < 10 {
			m.progress.Width = 10
		}
		return m, nil

	case spinner.TickMsg:
		if m.snapshot.Status.Terminal() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		return m, nil

	case NoticeMsg:
		m.notices = append(m.notices, msg.Notice)
		if len(m.notices) > maxNotices {
			m.notices = m.notices[len(m.notices)-maxNotices:]
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c", "esc":
		if m.snapshot.Status.Terminal() || m.onCancel == nil {
			return m, tea.Quit
		}
		if m.stopping {
			return m, nil
		}
		m.stopping = true
		cancel := m.onCancel
		return m, func() tea.Msg {
			cancel()
			return nil
		}
	}
	return m, nil
}

func (m Model) percent() float64 {
	if m.snapshot.TargetCount <= 0 {
		return 0
	}
	return float64(m.snapshot.FetchedCount) / float64(m.snapshot.TargetCount)
}

// View renders the job state
func (m Model) View() string {
	var b strings.Builder

	s := m.snapshot
	switch {
	case s.Status == models.StatusCompleted:
		b.WriteString(successStyle.Render("✓ Completed"))
	case s.Status == models.StatusFailed:
		b.WriteString(errorStyle.Render("✗ Failed"))
	case s.Status == models.StatusCanceled:
		b.WriteString(errorStyle.Render("■ Canceled"))
	case m.stopping:
		b.WriteString(m.spinner.View() + " " + titleStyle.Render("Stopping"))
	default:
		b.WriteString(m.spinner.View() + " " + titleStyle.Render("Fetching"))
	}
	b.WriteString(" " + dimStyle.Render(fmt.Sprintf("%q", m.query)) + "\n\n")

	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString(" " + countStyle.Render(fmt.Sprintf("%d/%d", s.FetchedCount, s.TargetCount)) + "\n")
	if s.Failures > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d failed attempts", s.Failures)) + "\n")
	}

	if len(m.notices) > 0 {
		b.WriteString("\n")
		for _, n := range m.notices {
			b.WriteString(renderNotice(n) + "\n")
		}
	}

	b.WriteString("\n")
	if s.Status.Terminal() {
		b.WriteString(dimStyle.Render("q: exit"))
	} else {
		b.WriteString(dimStyle.Render("q: stop"))
	}
	b.WriteString("\n")
	return b.String()
}

func renderNotice(n notify.Notice) string {
	line := n.Title + ": " + n.Message
	switch n.Level {
	case notify.LevelSuccess:
		return successStyle.Render(line)
	case notify.LevelError:
		return errorStyle.Render(line)
	default:
		return dimStyle.Render(line)
	}
}
