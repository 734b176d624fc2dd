package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vhq-lag/vhq/internal/models"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(fgColor).
			Background(primaryColor).
			Bold(true).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	focusedInputBoxStyle = inputBoxStyle.Copy().
				BorderForeground(primaryColor)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cyanColor)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	doneStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Strikethrough(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	selectedPanelStyle = panelStyle.Copy().
				BorderForeground(primaryColor)

	mentionBadgeStyle = lipgloss.NewStyle().
				Foreground(fgColor).
				Background(secondaryColor).
				Bold(true).
				Padding(0, 1)

	ceoBadgeStyle = mentionBadgeStyle.Copy().
			Background(warningColor)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	errorBarStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	messageStyle = lipgloss.NewStyle().
			Foreground(successColor)
)

// priorityStyle colours a priority badge.
func priorityStyle(p models.Priority) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch p {
	case models.PriorityHigh:
		return s.Foreground(errorColor)
	case models.PriorityMedium:
		return s.Foreground(warningColor)
	default:
		return s.Foreground(successColor)
	}
}

// agentStateStyle colours an agent run state. Unknown states render muted.
func agentStateStyle(st models.AgentState) lipgloss.Style {
	switch st {
	case models.AgentRunning:
		return lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case models.AgentBusy:
		return lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	case models.AgentStopped:
		return lipgloss.NewStyle().Foreground(errorColor)
	default:
		return lipgloss.NewStyle().Foreground(mutedColor)
	}
}

func agentStateIcon(st models.AgentState) string {
	switch st {
	case models.AgentRunning:
		return "●"
	case models.AgentBusy:
		return "◑"
	case models.AgentStopped:
		return "○"
	default:
		return "?"
	}
}
