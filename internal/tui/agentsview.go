package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/vhq-lag/vhq/internal/agents"
	"github.com/vhq-lag/vhq/internal/models"
	"github.com/vhq-lag/vhq/internal/poller"
)

const (
	cardWidth     = 38
	maxLanguages  = 5
	maxModels     = 3
	actionTimeout = 15 * time.Second
)

// AgentsView is the F2 view: system overview, queue counts and one card per
// agent. It owns the poller's lifetime while it is shown.
type AgentsView struct {
	poller   *poller.Poller
	ctx      context.Context
	cancel   context.CancelFunc
	snap     poller.Snapshot
	selected int
	pending  string // action in flight, shown with the spinner
	err      string
	message  string
	spinner  spinner.Model
	bar      progress.Model
	width    int
}

// NewAgentsView creates the view over p. Polling starts on Activate.
func NewAgentsView(p *poller.Poller) *AgentsView {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return &AgentsView{
		poller:  p,
		spinner: sp,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(cardWidth-14),
			progress.WithoutPercentage(),
		),
	}
}

// Active reports whether the view is polling.
func (v *AgentsView) Active() bool {
	return v.cancel != nil
}

// Activate starts polling and returns the commands that feed the view.
func (v *AgentsView) Activate() tea.Cmd {
	if v.Active() {
		return nil
	}
	v.ctx, v.cancel = context.WithCancel(context.Background())
	v.poller.Start(v.ctx)
	v.snap = v.poller.Snapshot()
	return tea.Batch(v.spinner.Tick, waitForSnapshot(v.ctx, v.poller.Updates()))
}

// Deactivate stops polling. Safe to call when inactive.
func (v *AgentsView) Deactivate() {
	if !v.Active() {
		return
	}
	v.cancel()
	v.poller.Stop()
	v.cancel = nil
	v.pending = ""
}

// snapshotMsg carries a committed poll.
type snapshotMsg poller.Snapshot

// agentActionMsg reports the outcome of a start/stop/clear/refresh.
type agentActionMsg struct {
	action string
	err    error
}

// waitForSnapshot delivers the next committed snapshot, or nothing once ctx
// is cancelled.
func waitForSnapshot(ctx context.Context, updates <-chan poller.Snapshot) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-updates:
			return snapshotMsg(s)
		case <-ctx.Done():
			return nil
		}
	}
}

// Update handles a message routed to the view.
func (v *AgentsView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case snapshotMsg:
		if !v.Active() {
			return nil
		}
		if msg.Seq >= v.snap.Seq {
			v.snap = poller.Snapshot(msg)
		}
		return waitForSnapshot(v.ctx, v.poller.Updates())

	case agentActionMsg:
		v.pending = ""
		if msg.err != nil {
			v.err = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			return nil
		}
		v.err = ""
		v.message = "✓ " + msg.action
		v.snap = v.poller.Snapshot()
		return nil

	case spinner.TickMsg:
		if !v.Active() {
			return nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return cmd

	case tea.KeyMsg:
		return v.handleKey(msg)
	}
	return nil
}

func (v *AgentsView) handleKey(key tea.KeyMsg) tea.Cmd {
	names := models.AgentNames
	switch key.String() {
	case "left", "h", "up", "k":
		if v.selected > 0 {
			v.selected--
		}
	case "right", "l", "down", "j":
		if v.selected < len(names)-1 {
			v.selected++
		}
	case "s":
		name := names[v.selected]
		return v.run("Start "+name, func(ctx context.Context) error { return v.poller.StartAgent(ctx, name) })
	case "x":
		name := names[v.selected]
		return v.run("Stop "+name, func(ctx context.Context) error { return v.poller.StopAgent(ctx, name) })
	case "c":
		return v.run("Clear completed tasks", v.poller.ClearCompletedTasks)
	case "r":
		return v.run("Refresh", func(ctx context.Context) error {
			_, err := v.poller.Refresh(ctx)
			return err
		})
	}
	return nil
}

// run executes fn off the UI goroutine. Only one action runs at a time.
func (v *AgentsView) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	if !v.Active() || v.pending != "" {
		return nil
	}
	v.pending = action
	v.message = ""
	parent := v.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		return agentActionMsg{action: action, err: fn(ctx)}
	}
}

// Message returns the status line: the last error, else the last result.
func (v *AgentsView) Message() (string, bool) {
	if v.err != "" {
		return "Error: " + v.err, true
	}
	return v.message, false
}

// SetWidth adapts the card layout to the terminal width.
func (v *AgentsView) SetWidth(w int) {
	v.width = w
}

// Help returns the key help for the status bar.
func (v *AgentsView) Help() string {
	return "←→:select | s:start | x:stop | c:clear done | r:refresh"
}

// View renders the agents page.
func (v *AgentsView) View() string {
	var b strings.Builder

	if v.snap.IsZero() {
		b.WriteString("\n  " + v.spinner.View() + " Connecting to host...\n")
		return b.String()
	}

	b.WriteString(v.renderOverview())
	b.WriteString("\n")

	cards := v.snap.Cards()
	rendered := make([]string, 0, len(cards))
	for i, c := range cards {
		rendered = append(rendered, v.renderCard(c, i == v.selected))
	}
	if v.width >= len(rendered)*(cardWidth+4) {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	} else {
		b.WriteString(lipgloss.JoinVertical(lipgloss.Left, rendered...))
	}
	b.WriteString("\n")

	updated := "updated " + humanize.Time(v.snap.UpdatedAt)
	if v.pending != "" {
		updated = v.spinner.View() + " " + v.pending + "..."
	}
	b.WriteString("  " + mutedStyle.Render(updated) + "\n")
	return b.String()
}

func (v *AgentsView) renderOverview() string {
	m := v.snap.Metrics
	q := v.snap.Queue.QueueStats

	system := fmt.Sprintf("CPU %.1f%%  MEM %s / %s  DISK %.1f%%  UP %s",
		m.CPUUsage,
		humanize.IBytes(uint64(max(m.UsedMemory, 0))),
		humanize.IBytes(uint64(max(m.TotalMemory, 0))),
		m.DiskUsage,
		FormatUptime(m.Uptime),
	)
	tasks := fmt.Sprintf("Active %d  Completed %d  Failed %d", m.ActiveTasks, m.CompletedTasks, m.FailedTasks)
	queue := fmt.Sprintf("Pending %d  Running %d  Completed %d  Failed %d  Total %d  (max %d concurrent)",
		q.Pending, q.Running, q.Completed, q.Failed, q.Total, v.snap.Queue.MaxConcurrentTasks)

	var b strings.Builder
	b.WriteString(sectionStyle.Render("  System") + "  " + system + "\n")
	b.WriteString(sectionStyle.Render("  Tasks ") + "  " + tasks + "\n")
	b.WriteString(sectionStyle.Render("  Queue ") + "  " + queue + "\n")
	return b.String()
}

func (v *AgentsView) renderCard(c poller.Card, selected bool) string {
	st := c.Status.State()
	var b strings.Builder

	name := c.Status.Name
	if name == "" {
		name = c.Name
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(name) + "  ")
	b.WriteString(agentStateStyle(st).Render(agentStateIcon(st) + " " + c.Status.Status))
	b.WriteString("\n")

	if c.Queue != nil {
		b.WriteString("Health " + v.bar.ViewAs(clamp01(c.Queue.HealthScore)))
		b.WriteString(fmt.Sprintf(" %3.0f%%\n", clamp01(c.Queue.HealthScore)*100))
	} else {
		b.WriteString(mutedStyle.Render("Health n/a") + "\n")
	}

	b.WriteString(fmt.Sprintf("Memory %s  CPU %.1f%%\n",
		humanize.IBytes(uint64(max(c.Status.MemoryUsage, 0))), c.Status.CPUUsage))

	if c.Queue != nil && len(c.Queue.Capabilities) > 0 {
		b.WriteString(mutedStyle.Render("Skills "+strings.Join(c.Queue.Capabilities, ", ")) + "\n")
	}
	if c.Queue != nil && c.Queue.CurrentTask != nil {
		b.WriteString("Task   " + shortID(*c.Queue.CurrentTask) + "\n")
	}

	switch c.Name {
	case agents.Vitra:
		if len(v.snap.VitraLanguages) > 0 {
			b.WriteString("Langs  " + FormatList(v.snap.VitraLanguages, maxLanguages) + "\n")
		}
	case agents.Ghost:
		if len(v.snap.GhostModels) > 0 {
			b.WriteString("Models " + FormatList(v.snap.GhostModels, maxModels) + "\n")
		}
	}

	last := "never"
	if t := c.Status.LastActivityTime(); !t.IsZero() {
		last = humanize.Time(t)
	}
	b.WriteString(mutedStyle.Render("Last activity " + last))

	style := panelStyle
	if selected {
		style = selectedPanelStyle
	}
	return style.Width(cardWidth).Render(b.String())
}

// FormatList joins the first limit items and summarises the rest as
// "+N more".
func FormatList(items []string, limit int) string {
	if limit <= 0 || len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(items[:limit], ", "), len(items)-limit)
}

// FormatUptime renders seconds of uptime as days, hours and minutes.
func FormatUptime(seconds float64) string {
	d := time.Duration(seconds) * time.Second
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
