package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhq-lag/vhq/internal/models"
	"github.com/vhq-lag/vhq/internal/todo"
)

func typeText(d *Dashboard, s string) {
	for _, r := range s {
		d.Update(key(string(r)))
	}
}

func TestDashboardAddsTodo(t *testing.T) {
	list := newTestList(t)
	d := NewDashboard(list)

	typeText(d, "Write brief for @ghost now")
	d.Update(key("tab"))
	typeText(d, "two pages")
	d.Update(key("enter"))

	pending := list.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "Write brief for @ghost now", pending[0].Title)
	assert.Equal(t, "two pages", pending[0].Description)
	assert.Equal(t, models.TagGhost, pending[0].Agent)
	assert.Equal(t, models.PriorityLow, pending[0].Priority)

	msg, isErr := d.Message()
	assert.False(t, isErr)
	assert.Contains(t, msg, "Added")

	// The form resets to an empty title with focus.
	assert.Empty(t, d.inputs[focusTitle].Value())
	assert.Empty(t, d.inputs[focusDescription].Value())
	assert.Equal(t, focusTitle, d.focus)
}

func TestDashboardRejectsEmptyTitle(t *testing.T) {
	list := newTestList(t)
	d := NewDashboard(list)

	typeText(d, "   ")
	d.Update(key("enter"))

	assert.Empty(t, list.All())
	msg, isErr := d.Message()
	assert.True(t, isErr)
	assert.Contains(t, msg, "title is required")
}

func TestDashboardFormatsDueDateWhileTyping(t *testing.T) {
	d := NewDashboard(newTestList(t))

	d.Update(key("tab"))
	d.Update(key("tab"))
	require.Equal(t, focusDueDate, d.focus)

	typeText(d, "1")
	assert.Equal(t, "1", d.inputs[focusDueDate].Value())
	typeText(d, "5")
	assert.Equal(t, "15", d.inputs[focusDueDate].Value())
	typeText(d, "0")
	assert.Equal(t, "15/0", d.inputs[focusDueDate].Value())
	typeText(d, "7")
	assert.Equal(t, "15/07", d.inputs[focusDueDate].Value())
}

func TestDashboardRejectsPastDueDate(t *testing.T) {
	list := newTestList(t)
	d := NewDashboard(list)

	typeText(d, "File taxes")
	d.Update(key("tab"))
	d.Update(key("tab"))
	typeText(d, "0101")
	d.Update(key("enter"))

	assert.Empty(t, list.All())
	msg, isErr := d.Message()
	assert.True(t, isErr)
	assert.Contains(t, msg, todo.ErrInvalidDueDate.Error())
	assert.Equal(t, "File taxes", d.inputs[focusTitle].Value(), "input is kept for correction")
}

func TestDashboardPriorityCycles(t *testing.T) {
	d := NewDashboard(newTestList(t))
	for i := 0; i < 3; i++ {
		d.Update(key("tab"))
	}
	require.Equal(t, focusPriority, d.focus)

	assert.Equal(t, models.PriorityLow, d.Priority())
	d.Update(key("right"))
	assert.Equal(t, models.PriorityMedium, d.Priority())
	d.Update(key("right"))
	assert.Equal(t, models.PriorityHigh, d.Priority())
	d.Update(key("right"))
	assert.Equal(t, models.PriorityLow, d.Priority())
	d.Update(key("left"))
	assert.Equal(t, models.PriorityHigh, d.Priority())

	d.Update(key("shift+tab"))
	assert.Equal(t, focusDueDate, d.focus)
}

func TestDashboardToggleAndDelete(t *testing.T) {
	list := newTestList(t)
	_, err := list.Add(todo.Draft{Title: "low one", Priority: models.PriorityLow})
	require.NoError(t, err)
	_, err = list.Add(todo.Draft{Title: "high one", Priority: models.PriorityHigh})
	require.NoError(t, err)

	d := NewDashboard(list)
	for i := 0; i < 4; i++ {
		d.Update(key("tab"))
	}
	require.Equal(t, focusList, d.focus)

	// Pending rows are sorted, so the HIGH item is first.
	d.Update(key("x"))
	require.Len(t, list.Completed(), 1)
	assert.Equal(t, "high one", list.Completed()[0].Title)

	d.Update(key("down"))
	d.Update(key("d"))
	assert.Len(t, list.All(), 1)
	assert.Equal(t, "low one", list.All()[0].Title)
	assert.Equal(t, 0, d.selected)

	msg, _ := d.Message()
	assert.Contains(t, msg, "Deleted")
}

func TestDashboardMentionAutocomplete(t *testing.T) {
	d := NewDashboard(newTestList(t))

	typeText(d, "ask @c")
	require.True(t, d.suggestions.IsVisible())

	d.Update(key("tab"))
	assert.Equal(t, "ask @CEO ", d.inputs[focusTitle].Value())
	assert.False(t, d.suggestions.IsVisible())
	assert.Equal(t, focusTitle, d.focus, "accepting a suggestion keeps focus")
}

func TestRenderMentions(t *testing.T) {
	out := RenderMentions("ping @ghost and @CEO now")

	assert.NotContains(t, out, "@")
	assert.Contains(t, out, "ping ")
	assert.Contains(t, out, " and ")
	assert.Contains(t, out, " now")
	assert.Equal(t, 1, strings.Count(out, models.TagGhost))
	assert.Equal(t, 1, strings.Count(out, models.TagCEO))
	assert.Less(t, strings.Index(out, models.TagGhost), strings.Index(out, models.TagCEO))

	assert.Equal(t, "no mentions", RenderMentions("no mentions"))
}

func TestDashboardViewListsBothSections(t *testing.T) {
	list := newTestList(t)
	rec, _ := list.Add(todo.Draft{Title: "done thing"})
	require.NoError(t, list.Toggle(rec.ID))
	list.Add(todo.Draft{Title: "open thing", DueDate: "20/06"})

	view := NewDashboard(list).View()
	assert.Contains(t, view, "Pending (1)")
	assert.Contains(t, view, "Completed (1)")
	assert.Contains(t, view, "open thing")
	assert.Contains(t, view, "due 20/06")
	assert.Contains(t, view, "done thing")
}
