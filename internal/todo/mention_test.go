package todo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vhq-lag/vhq/internal/models"
)

func TestParseMentions(t *testing.T) {
	in := "ping @ghost and @CEO now"
	segs := ParseMentions(in)

	assert.Equal(t, []Segment{
		{Text: "ping "},
		{Text: "@ghost", Agent: models.TagGhost},
		{Text: " and "},
		{Text: "@CEO", Agent: models.TagCEO},
		{Text: " now"},
	}, segs)

	var mentions int
	var rebuilt strings.Builder
	for _, s := range segs {
		if s.IsMention() {
			mentions++
		}
		rebuilt.WriteString(s.Text)
	}
	assert.Equal(t, 2, mentions)
	assert.Equal(t, in, rebuilt.String())
}

func TestParseMentions_Edges(t *testing.T) {
	assert.Nil(t, ParseMentions(""))
	assert.Equal(t, []Segment{{Text: "plain text"}}, ParseMentions("plain text"))
	assert.Equal(t, []Segment{{Text: "@Ceo", Agent: models.TagCEO}}, ParseMentions("@Ceo"))
	assert.Equal(t, []Segment{
		{Text: "@gHoSt", Agent: models.TagGhost},
		{Text: "@ceo", Agent: models.TagCEO},
	}, ParseMentions("@gHoSt@ceo"))
	assert.Equal(t, []Segment{{Text: "email@vitra"}}, ParseMentions("email@vitra"))
}

func TestFirstMention(t *testing.T) {
	assert.Equal(t, models.TagGhost, FirstMention("x @GHOST y @ceo"))
	assert.Equal(t, "", FirstMention("nobody here"))
}
