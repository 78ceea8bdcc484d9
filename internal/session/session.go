// Package session tracks per-conversation state: activity, rolling query
// history, inferred urgency/topic, and the delivery handle used for
// proactive sends.
package session

import (
	"time"

	"github.com/castellan/castellan/internal/alert"
	"github.com/castellan/castellan/internal/classify"
)

// maxRecentQueries caps the rolling history kept per conversation.
const maxRecentQueries = 5

// ResponsePreference describes how replies for a conversation should be
// shaped.
type ResponsePreference struct {
	DetailLevel string `json:"detailLevel"` // brief | detailed | comprehensive
	Format      string `json:"format"`      // text | structured
}

// Conversation is the tracked state for a single chat conversation.
type Conversation struct {
	ConversationID  string
	UserID          string
	UserDisplayName string
	ThreadID        string
	LastActivityAt  time.Time
	MessageCount    int
	RecentQueries   []string
	InferredUrgency alert.Severity
	InferredTopic   string
	ResponsePref    ResponsePreference
	DeliveryHandle  string
}

func newConversation(conversationID, userID, displayName string, now time.Time) *Conversation {
	return &Conversation{
		ConversationID:  conversationID,
		UserID:          userID,
		UserDisplayName: displayName,
		LastActivityAt:  now,
		InferredUrgency: alert.SeverityLow,
		InferredTopic:   classify.DefaultTopic,
		ResponsePref: ResponsePreference{
			DetailLevel: "detailed",
			Format:      "text",
		},
	}
}

// clone returns a copy safe to hand to callers while the store retains
// the original.
func (c *Conversation) clone() Conversation {
	out := *c
	out.RecentQueries = append([]string(nil), c.RecentQueries...)
	return out
}
