// Package tui provides the interactive terminal console for vhq.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vhq-lag/vhq/internal/poller"
	"github.com/vhq-lag/vhq/internal/todo"
)

// Views.
const (
	viewDashboard = iota
	viewAgents
)

// HealthChecker reports whether the host daemon answers.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (bool, error)
}

// App is the main TUI application model.
type App struct {
	dashboard   *Dashboard
	agents      *AgentsView
	health      HealthChecker
	viewport    viewport.Model
	view        int
	width       int
	height      int
	hostOnline  bool
	hostChecked bool
}

// New creates a new TUI application. health may be nil.
func New(list *todo.List, p *poller.Poller, health HealthChecker) *App {
	return &App{
		dashboard: NewDashboard(list),
		agents:    NewAgentsView(p),
		health:    health,
		viewport:  viewport.New(80, 20),
	}
}

// Run starts the TUI application. The poller is stopped when it returns.
func (a *App) Run() error {
	defer a.agents.Deactivate()
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.checkHost(),
	)
}

type hostStatusMsg struct {
	online bool
}

type hostTickMsg time.Time

func (a *App) checkHost() tea.Cmd {
	if a.health == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ok, err := a.health.CheckHealth(ctx)
		return hostStatusMsg{online: err == nil && ok}
	}
}

func (a *App) hostTick() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return hostTickMsg(t)
	})
}

// switchTo changes the active view. Leaving the agents view stops polling.
func (a *App) switchTo(view int) tea.Cmd {
	if view == a.view {
		return nil
	}
	a.view = view
	a.viewport.GotoTop()
	if view == viewAgents {
		return a.agents.Activate()
	}
	a.agents.Deactivate()
	return nil
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.agents.Deactivate()
			return a, tea.Quit
		case "f1":
			return a, a.switchTo(viewDashboard)
		case "f2":
			return a, a.switchTo(viewAgents)
		case "esc":
			if a.view == viewAgents {
				return a, a.switchTo(viewDashboard)
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			return a, cmd
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-6, 5)
		a.dashboard.SetWidth(msg.Width)
		a.agents.SetWidth(msg.Width)
		return a, nil

	case hostStatusMsg:
		a.hostOnline = msg.online
		a.hostChecked = true
		return a, a.hostTick()

	case hostTickMsg:
		return a, a.checkHost()

	case snapshotMsg, agentActionMsg:
		return a, a.agents.Update(msg)
	}

	if a.view == viewAgents {
		return a, a.agents.Update(msg)
	}
	return a, a.dashboard.Update(msg)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	hostStatus := mutedStyle.Render("… HOST")
	if a.hostChecked {
		hostStatus = onlineStyle.Render("● HOST")
		if !a.hostOnline {
			hostStatus = offlineStyle.Render("○ HOST")
		}
	}

	dashTab, agentsTab := activeTabStyle, tabStyle
	if a.view == viewAgents {
		dashTab, agentsTab = tabStyle, activeTabStyle
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("VHQ"),
		dashTab.Render("F1 Dashboard"),
		agentsTab.Render("F2 Agents"),
		"  "+hostStatus,
	)
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	var body, help, message string
	var isErr bool
	if a.view == viewAgents {
		body, help = a.agents.View(), a.agents.Help()
		message, isErr = a.agents.Message()
	} else {
		body, help = a.dashboard.View(), a.dashboard.Help()
		message, isErr = a.dashboard.Message()
	}
	a.viewport.SetContent(body)
	b.WriteString(a.viewport.View())

	// Message bar
	b.WriteString("\n")
	if message != "" {
		st := messageStyle
		if isErr {
			st = errorBarStyle
		}
		b.WriteString(st.Render(message))
	}
	b.WriteString("\n")

	status := " " + help + " | F1/F2:views | PgUp/PgDn:scroll | Ctrl+C:quit"
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}
