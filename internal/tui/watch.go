// Package tui implements the live watch view: a scrolling orchestration
// event log, the agent roster with turn state, and pending human questions.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/avickers/helmsman/internal/orchestrator"
	"github.com/avickers/helmsman/pkg/models"
)

const maxLogLines = 500

// AgentRow is one roster entry.
type AgentRow struct {
	Profile models.AgentProfile
	Running bool
}

// Messages the host loop sends into the program.
type (
	// LogMsg appends one line to the event log.
	LogMsg struct {
		Timestamp time.Time
		Line      string
	}
	// AgentsMsg replaces the roster.
	AgentsMsg struct {
		Agents []AgentRow
	}
	// QuestionsMsg replaces the pending questions list.
	QuestionsMsg struct {
		Questions []orchestrator.HumanQuestion
	}
	// GovernorsMsg updates the footer's automation state.
	GovernorsMsg struct {
		Governors orchestrator.Governors
	}
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC857"))
	idleStyle     = lipgloss.NewStyle().Faint(true)
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8E53"))
	footerStyle   = lipgloss.NewStyle().Faint(true)
	pausedStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
)

// WatchApp is the bubbletea model for helmsman watch.
type WatchApp struct {
	spinner   spinner.Model
	log       viewport.Model
	logLines  []string
	agents    []AgentRow
	questions []orchestrator.HumanQuestion
	governors orchestrator.Governors
	width     int
	height    int
	ready     bool
	quitting  bool
}

// NewWatchApp creates the watch model.
func NewWatchApp(governors orchestrator.Governors) *WatchApp {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle
	return &WatchApp{
		spinner:   sp,
		governors: governors,
	}
}

// Init implements tea.Model.
func (a *WatchApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *WatchApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case "g":
			a.log.GotoBottom()
		}
		var cmd tea.Cmd
		a.log, cmd = a.log.Update(msg)
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		logHeight := msg.Height - a.sidebarHeight() - 3
		if logHeight < 3 {
			logHeight = 3
		}
		if !a.ready {
			a.log = viewport.New(msg.Width, logHeight)
			a.ready = true
		} else {
			a.log.Width = msg.Width
			a.log.Height = logHeight
		}
		a.refreshLog()
		return a, nil

	case LogMsg:
		line := fmt.Sprintf("%s  %s", msg.Timestamp.Format("15:04:05"), msg.Line)
		a.logLines = append(a.logLines, line)
		if len(a.logLines) > maxLogLines {
			a.logLines = a.logLines[len(a.logLines)-maxLogLines:]
		}
		a.refreshLog()
		return a, nil

	case AgentsMsg:
		a.agents = msg.Agents
		return a, nil

	case QuestionsMsg:
		a.questions = msg.Questions
		return a, nil

	case GovernorsMsg:
		a.governors = msg.Governors
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

func (a *WatchApp) refreshLog() {
	if !a.ready {
		return
	}
	atBottom := a.log.AtBottom()
	a.log.SetContent(strings.Join(a.logLines, "\n"))
	if atBottom {
		a.log.GotoBottom()
	}
}

func (a *WatchApp) sidebarHeight() int {
	return 2 + len(a.agents) + len(a.questions)
}

// View implements tea.Model.
func (a *WatchApp) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}
	if !a.ready {
		return "Starting session..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Agents"))
	b.WriteString("\n")
	for _, row := range a.agents {
		if row.Running {
			b.WriteString(fmt.Sprintf("%s %s  %s\n", a.spinner.View(), row.Profile.ID, runningStyle.Render("working")))
		} else {
			b.WriteString(fmt.Sprintf("  %s  %s\n", row.Profile.ID, idleStyle.Render("idle")))
		}
	}

	if len(a.questions) > 0 {
		b.WriteString(titleStyle.Render("Pending questions"))
		b.WriteString("\n")
		for _, q := range a.questions {
			b.WriteString(questionStyle.Render(fmt.Sprintf("  [%s] %s", q.ID, q.Question)))
			b.WriteString("\n")
		}
	}

	b.WriteString(a.log.View())
	b.WriteString("\n")
	b.WriteString(a.footer())
	return b.String()
}

func (a *WatchApp) footer() string {
	state := "automation on"
	if !a.governors.AutomationEnabled {
		state = pausedStyle.Render("PAUSED")
	}
	return footerStyle.Render(fmt.Sprintf("%s  |  chain limit %d  |  q: quit  g: follow log",
		state, a.governors.MaxChainDepth))
}

// NewWatchProgram creates a Bubbletea program for the watch view. The
// returned program receives updates via Send().
func NewWatchProgram(governors orchestrator.Governors) (*tea.Program, *WatchApp) {
	app := NewWatchApp(governors)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
