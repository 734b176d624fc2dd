package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vhq-lag/vhq/internal/models"
)

// Suggestions provides @-mention autocomplete for todo text fields.
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
	visible     bool
	token       string // the trailing "@..." word being completed
}

// SuggestionItem represents a single autocomplete suggestion
type SuggestionItem struct {
	Text        string
	Description string
}

var mentionSuggestions = []SuggestionItem{
	{Text: "@" + models.TagGhost, Description: "Content generation agent"},
	{Text: "@" + models.TagCEO, Description: "Orchestrator"},
}

// NewSuggestions creates a new suggestions handler
func NewSuggestions() *Suggestions {
	return &Suggestions{
		items: mentionSuggestions,
	}
}

// trailingToken returns the last whitespace-separated word of input, or ""
// when input ends in whitespace.
func trailingToken(input string) string {
	if input == "" || strings.HasSuffix(input, " ") {
		return ""
	}
	if i := strings.LastIndexAny(input, " \t"); i >= 0 {
		return input[i+1:]
	}
	return input
}

// Update updates suggestions based on current input. They show while the
// word under the cursor starts with "@".
func (s *Suggestions) Update(input string) {
	tok := trailingToken(input)
	if !strings.HasPrefix(tok, "@") {
		s.Hide()
		return
	}
	if tok != s.token {
		s.selectedIdx = 0
	}
	s.token = tok
	s.filter(strings.ToLower(strings.TrimPrefix(tok, "@")))
	s.visible = true
}

// Hide closes the dropdown.
func (s *Suggestions) Hide() {
	s.visible = false
	s.filtered = nil
	s.token = ""
	s.selectedIdx = 0
}

func (s *Suggestions) filter(query string) {
	s.filtered = []SuggestionItem{}
	for _, item := range s.items {
		if strings.HasPrefix(strings.ToLower(strings.TrimPrefix(item.Text, "@")), query) {
			s.filtered = append(s.filtered, item)
		}
	}
	if s.selectedIdx >= len(s.filtered) {
		s.selectedIdx = 0
	}
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the currently selected suggestion
func (s *Suggestions) Selected() *SuggestionItem {
	if !s.IsVisible() || s.selectedIdx >= len(s.filtered) {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// Apply replaces the trailing token of input with the selected mention and
// closes the dropdown. Input is returned unchanged when nothing is selected.
func (s *Suggestions) Apply(input string) string {
	sel := s.Selected()
	if sel == nil {
		return input
	}
	out := strings.TrimSuffix(input, s.token) + sel.Text + " "
	s.Hide()
	return out
}

// IsVisible returns whether suggestions are currently visible
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.filtered) > 0
}

// Render renders the suggestions dropdown
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	var b strings.Builder

	suggestionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1)
	if width > 8 {
		suggestionStyle = suggestionStyle.Width(width - 4)
	}

	itemSelected := lipgloss.NewStyle().
		Background(primaryColor).
		Foreground(fgColor).
		Bold(true)
	itemStyle := lipgloss.NewStyle().Foreground(fgColor)
	descStyle := helpStyle

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Render("🔗 Mention an agent"))
	b.WriteString("\n")

	for i, item := range s.filtered {
		var line string
		if i == s.selectedIdx {
			line = itemSelected.Render("▶ " + item.Text)
			if item.Description != "" {
				line += " " + itemSelected.Render(item.Description)
			}
		} else {
			line = itemStyle.Render("  " + item.Text)
			if item.Description != "" {
				line += " " + descStyle.Render(item.Description)
			}
		}
		b.WriteString(line)
		if i < len(s.filtered)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString(fmt.Sprintf("\n%s", descStyle.Render("tab/enter: insert  ↑↓: choose")))

	return suggestionStyle.Render(b.String())
}
