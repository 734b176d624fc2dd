package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vhq-lag/vhq/internal/models"
	"github.com/vhq-lag/vhq/internal/todo"
)

// Focus targets of the dashboard, in tab order.
const (
	focusTitle = iota
	focusDescription
	focusDueDate
	focusPriority
	focusList
	focusCount
)

// Dashboard is the F1 view: the todo entry form and the todo lists.
type Dashboard struct {
	list        *todo.List
	inputs      []textinput.Model // title, description, due date
	priorityIdx int
	focus       int
	selected    int // index into rows()
	suggestions *Suggestions
	message     string
	isErr       bool
	width       int
}

// NewDashboard creates the dashboard over list.
func NewDashboard(list *todo.List) *Dashboard {
	placeholders := []string{"What needs doing? (@Ghost, @CEO to mention)", "Details (optional)", "DD/MM"}
	limits := []int{120, 256, 5}
	inputs := make([]textinput.Model, len(placeholders))
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = limits[i]
		ti.Width = 60
		inputs[i] = ti
	}
	inputs[focusDueDate].Width = 8
	inputs[focusTitle].Focus()

	return &Dashboard{
		list:        list,
		inputs:      inputs,
		suggestions: NewSuggestions(),
	}
}

// SetWidth adapts the inputs to the terminal width.
func (d *Dashboard) SetWidth(w int) {
	d.width = w
	if w > 12 {
		d.inputs[focusTitle].Width = w - 12
		d.inputs[focusDescription].Width = w - 12
	}
}

// Priority returns the priority selected in the form.
func (d *Dashboard) Priority() models.Priority {
	return models.Priorities[d.priorityIdx]
}

// rows is the selectable list: pending items first, then completed ones.
func (d *Dashboard) rows() []models.TodoRecord {
	return append(d.list.Pending(), d.list.Completed()...)
}

func (d *Dashboard) setFocus(f int) tea.Cmd {
	d.focus = (f + focusCount) % focusCount
	d.suggestions.Hide()
	var cmd tea.Cmd
	for i := range d.inputs {
		if i == d.focus {
			cmd = d.inputs[i].Focus()
		} else {
			d.inputs[i].Blur()
		}
	}
	return cmd
}

func (d *Dashboard) setMessage(msg string, isErr bool) {
	d.message = msg
	d.isErr = isErr
}

// editingText reports whether a text field that takes mentions has focus.
func (d *Dashboard) editingText() bool {
	return d.focus == focusTitle || d.focus == focusDescription
}

// Update handles a message routed to the dashboard.
func (d *Dashboard) Update(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if d.focus < len(d.inputs) {
			var cmd tea.Cmd
			d.inputs[d.focus], cmd = d.inputs[d.focus].Update(msg)
			return cmd
		}
		return nil
	}

	if d.suggestions.IsVisible() {
		switch key.String() {
		case "up":
			d.suggestions.Prev()
			return nil
		case "down":
			d.suggestions.Next()
			return nil
		case "tab", "enter":
			in := &d.inputs[d.focus]
			in.SetValue(d.suggestions.Apply(in.Value()))
			in.CursorEnd()
			return nil
		case "esc":
			d.suggestions.Hide()
			return nil
		}
	}

	switch key.String() {
	case "tab":
		return d.setFocus(d.focus + 1)
	case "shift+tab":
		return d.setFocus(d.focus - 1)
	}

	switch d.focus {
	case focusPriority:
		return d.updatePriority(key)
	case focusList:
		return d.updateList(key)
	default:
		return d.updateInput(key)
	}
}

func (d *Dashboard) updatePriority(key tea.KeyMsg) tea.Cmd {
	n := len(models.Priorities)
	switch key.String() {
	case "left", "h":
		d.priorityIdx = (d.priorityIdx + n - 1) % n
	case "right", "l", " ":
		d.priorityIdx = (d.priorityIdx + 1) % n
	case "enter":
		d.submit()
	}
	return nil
}

func (d *Dashboard) updateList(key tea.KeyMsg) tea.Cmd {
	rows := d.rows()
	switch key.String() {
	case "up", "k":
		if d.selected > 0 {
			d.selected--
		}
	case "down", "j":
		if d.selected < len(rows)-1 {
			d.selected++
		}
	case " ", "x", "enter":
		if d.selected < len(rows) {
			rec := rows[d.selected]
			if err := d.list.Toggle(rec.ID); err != nil {
				d.setMessage("Error: "+err.Error(), true)
				return nil
			}
			if rec.Completed {
				d.setMessage("↺ Reopened: "+rec.Title, false)
			} else {
				d.setMessage("✓ Completed: "+rec.Title, false)
			}
		}
	case "d", "delete":
		if d.selected < len(rows) {
			rec := rows[d.selected]
			if err := d.list.Delete(rec.ID); err != nil {
				d.setMessage("Error: "+err.Error(), true)
				return nil
			}
			d.setMessage("✗ Deleted: "+rec.Title, false)
		}
	}
	if n := len(d.rows()); d.selected >= n {
		d.selected = max(0, n-1)
	}
	return nil
}

func (d *Dashboard) updateInput(key tea.KeyMsg) tea.Cmd {
	if key.String() == "enter" {
		d.submit()
		return nil
	}

	var cmd tea.Cmd
	in := &d.inputs[d.focus]
	*in, cmd = in.Update(key)

	if d.editingText() {
		d.suggestions.Update(in.Value())
	} else if formatted := todo.FormatDueDate(in.Value()); formatted != in.Value() {
		// Due dates are reformatted on every keystroke.
		in.SetValue(formatted)
		in.CursorEnd()
	}
	return cmd
}

// submit adds the form contents as a new todo.
func (d *Dashboard) submit() {
	rec, err := d.list.Add(todo.Draft{
		Title:       d.inputs[focusTitle].Value(),
		Description: d.inputs[focusDescription].Value(),
		DueDate:     d.inputs[focusDueDate].Value(),
		Priority:    d.Priority(),
	})
	switch {
	case errors.Is(err, todo.ErrEmptyTitle):
		d.setMessage("Error: a title is required", true)
		return
	case errors.Is(err, todo.ErrInvalidDueDate):
		d.setMessage("Error: "+todo.ErrInvalidDueDate.Error(), true)
		return
	case err != nil:
		d.setMessage("Error: "+err.Error(), true)
		return
	}

	for i := range d.inputs {
		d.inputs[i].SetValue("")
	}
	d.priorityIdx = 0
	d.suggestions.Hide()
	d.setFocus(focusTitle)
	d.setMessage(fmt.Sprintf("✓ Added: %s", rec.Title), false)
}

// Message returns the last status line and whether it is an error.
func (d *Dashboard) Message() (string, bool) {
	return d.message, d.isErr
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render("  New task") + "\n")
	labels := []string{"Title", "Notes", "Due"}
	for i, in := range d.inputs {
		box := inputBoxStyle
		if d.focus == i {
			box = focusedInputBoxStyle
		}
		b.WriteString(fmt.Sprintf("  %-6s%s\n", labels[i], box.Render(in.View())))
		if d.focus == i && d.suggestions.IsVisible() {
			b.WriteString(d.suggestions.Render(d.width) + "\n")
		}
	}
	b.WriteString("  " + fmt.Sprintf("%-6s", "Prio") + d.renderPriorityPicker() + "\n\n")

	pending := d.list.Pending()
	completed := d.list.Completed()

	b.WriteString(sectionStyle.Render(fmt.Sprintf("  Pending (%d)", len(pending))) + "\n")
	if len(pending) == 0 {
		b.WriteString(mutedStyle.Render("    Nothing pending.") + "\n")
	}
	for i, rec := range pending {
		b.WriteString(d.renderRow(rec, d.focus == focusList && d.selected == i) + "\n")
	}

	b.WriteString("\n" + sectionStyle.Render(fmt.Sprintf("  Completed (%d)", len(completed))) + "\n")
	if len(completed) == 0 {
		b.WriteString(mutedStyle.Render("    Nothing completed yet.") + "\n")
	}
	for i, rec := range completed {
		b.WriteString(d.renderRow(rec, d.focus == focusList && d.selected == len(pending)+i) + "\n")
	}

	return b.String()
}

func (d *Dashboard) renderPriorityPicker() string {
	var parts []string
	for i, p := range models.Priorities {
		label := string(p)
		if i == d.priorityIdx {
			st := priorityStyle(p).Underline(true)
			if d.focus == focusPriority {
				label = "[" + label + "]"
			}
			parts = append(parts, st.Render(label))
			continue
		}
		parts = append(parts, mutedStyle.Render(label))
	}
	return strings.Join(parts, " ")
}

func (d *Dashboard) renderRow(rec models.TodoRecord, selected bool) string {
	check := "[ ]"
	if rec.Completed {
		check = "[x]"
	}

	var line strings.Builder
	line.WriteString(check + " ")
	line.WriteString(priorityStyle(rec.Priority).Render(fmt.Sprintf("%-6s", rec.Priority)) + " ")
	if rec.Completed {
		line.WriteString(doneStyle.Render(rec.Title))
	} else {
		line.WriteString(RenderMentions(rec.Title))
	}
	if rec.DueDate != "" {
		line.WriteString(mutedStyle.Render("  due " + rec.DueDate))
	}
	if rec.Agent != "" {
		line.WriteString(mutedStyle.Render("  → " + rec.Agent))
	}
	if rec.Description != "" {
		line.WriteString("\n      " + mutedStyle.Render(RenderMentions(rec.Description)))
	}

	if selected {
		return selectedStyle.Render("▶ " + line.String())
	}
	return taskItemStyle.Render("  " + line.String())
}

// RenderMentions renders text with every @Ghost / @CEO mention shown as an
// inline badge. All other text is kept as is.
func RenderMentions(text string) string {
	var b strings.Builder
	for _, seg := range todo.ParseMentions(text) {
		if !seg.IsMention() {
			b.WriteString(seg.Text)
			continue
		}
		st := mentionBadgeStyle
		if seg.Agent == models.TagCEO {
			st = ceoBadgeStyle
		}
		b.WriteString(st.Render(seg.Agent))
	}
	return b.String()
}

// Help returns the key help for the status bar.
func (d *Dashboard) Help() string {
	switch d.focus {
	case focusList:
		return "↑↓:select | space:toggle | d:delete | tab:form"
	case focusPriority:
		return "←→:priority | enter:add | tab:next"
	default:
		return "enter:add | tab:next field | @:mention"
	}
}
