package todo

import (
	"regexp"
	"strings"

	"github.com/vhq-lag/vhq/internal/models"
)

var mentionPattern = regexp.MustCompile(`(?i)@(ghost|ceo)`)

// Segment is a run of todo text. Agent is set for mention segments and
// holds the canonical agent name; Text is always the original text.
type Segment struct {
	Text  string
	Agent string
}

// IsMention reports whether the segment is an agent mention.
func (s Segment) IsMention() bool {
	return s.Agent != ""
}

// ParseMentions splits text into plain runs and @Ghost / @CEO mentions,
// matched case-insensitively. Concatenating every Segment.Text yields text.
func ParseMentions(text string) []Segment {
	var segments []Segment
	last := 0
	for _, loc := range mentionPattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Text: text[last:loc[0]]})
		}
		segments = append(segments, Segment{
			Text:  text[loc[0]:loc[1]],
			Agent: canonicalAgent(text[loc[2]:loc[3]]),
		})
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}

// FirstMention returns the canonical agent of the first mention in text,
// or "" when there is none.
func FirstMention(text string) string {
	m := mentionPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return canonicalAgent(m[1])
}

func canonicalAgent(name string) string {
	if strings.EqualFold(name, models.TagCEO) {
		return models.TagCEO
	}
	return models.TagGhost
}
