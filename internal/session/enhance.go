package session

import (
	"strings"

	"github.com/castellan/castellan/internal/classify"
)

// maxPriorQueries limits how many earlier queries are echoed into the
// context block.
const maxPriorQueries = 3

// Enhance appends a conversation-context block to text when the session
// has prior history. The block carries the current topic (when one has
// been inferred beyond the default), the most recent prior queries, and
// the preferred response detail level. Called after Update has recorded
// the current message, so "prior" excludes the newest history entry.
// Pure string transformation: the input is returned unchanged when the
// conversation is unknown or has no history before the current message.
func (s *Store) Enhance(text, conversationID string) string {
	c, ok := s.Get(conversationID)
	if !ok || len(c.RecentQueries) <= 1 {
		return text
	}

	prior := c.RecentQueries[:len(c.RecentQueries)-1]
	if len(prior) > maxPriorQueries {
		prior = prior[len(prior)-maxPriorQueries:]
	}

	var sb strings.Builder
	sb.WriteString(text)
	sb.WriteString("\n\n[Conversation context]")
	if c.InferredTopic != "" && c.InferredTopic != classify.DefaultTopic {
		sb.WriteString("\nCurrent topic: ")
		sb.WriteString(c.InferredTopic)
	}
	sb.WriteString("\nRecent questions: ")
	sb.WriteString(strings.Join(prior, "; "))
	sb.WriteString("\nRespond at a ")
	sb.WriteString(c.ResponsePref.DetailLevel)
	sb.WriteString(" level of detail.")
	return sb.String()
}
