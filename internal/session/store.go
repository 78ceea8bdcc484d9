package session

import (
	"strings"
	"sync"
	"time"

	"github.com/castellan/castellan/internal/classify"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store owns all conversation records. All methods are safe for
// concurrent use.
type Store struct {
	clock Clock

	mu       sync.RWMutex
	sessions map[string]*Conversation
	order    []string // conversation ids in first-seen order
}

// NewStore creates an empty Store using wall-clock time.
func NewStore() *Store {
	return NewStoreWithClock(realClock{})
}

// NewStoreWithClock creates a Store with a custom clock (for testing).
func NewStoreWithClock(clock Clock) *Store {
	return &Store{
		clock:    clock,
		sessions: make(map[string]*Conversation),
	}
}

// Update creates or refreshes the session for a conversation. A non-empty
// messageText is normalized, appended to the rolling query history, and
// reclassified for urgency/topic using only the new message. A non-empty
// deliveryHandle overwrites the stored handle, so stale handles refresh on
// the next inbound message.
func (s *Store) Update(conversationID, userID, displayName, messageText, deliveryHandle string) Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	c, ok := s.sessions[conversationID]
	if !ok {
		c = newConversation(conversationID, userID, displayName, now)
		s.sessions[conversationID] = c
		s.order = append(s.order, conversationID)
	}

	c.LastActivityAt = now
	c.MessageCount++
	if userID != "" {
		c.UserID = userID
	}
	if displayName != "" {
		c.UserDisplayName = displayName
	}
	if deliveryHandle != "" {
		c.DeliveryHandle = deliveryHandle
	}

	if messageText != "" {
		normalized := strings.ToLower(strings.TrimSpace(messageText))
		c.RecentQueries = append(c.RecentQueries, normalized)
		if len(c.RecentQueries) > maxRecentQueries {
			c.RecentQueries = c.RecentQueries[len(c.RecentQueries)-maxRecentQueries:]
		}
		c.InferredUrgency = classify.Urgency(messageText)
		c.InferredTopic = classify.Topic(messageText)
	}

	return c.clone()
}

// Get returns the session for a conversation, reporting absence via the
// second return value.
func (s *Store) Get(conversationID string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.sessions[conversationID]
	if !ok {
		return Conversation{}, false
	}
	return c.clone(), true
}

// Handle addresses one known conversation for proactive delivery.
type Handle struct {
	ConversationID string
	UserID         string
	DeliveryHandle string
}

// DeliveryHandles lists every known conversation with a delivery handle,
// in first-seen order.
func (s *Store) DeliveryHandles() []Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make([]Handle, 0, len(s.order))
	for _, id := range s.order {
		c, ok := s.sessions[id]
		if !ok || c.DeliveryHandle == "" {
			continue
		}
		handles = append(handles, Handle{
			ConversationID: c.ConversationID,
			UserID:         c.UserID,
			DeliveryHandle: c.DeliveryHandle,
		})
	}
	return handles
}

// EvictOlderThan removes sessions whose last activity is strictly older
// than maxAge and returns the number removed.
func (s *Store) EvictOlderThan(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-maxAge)
	evicted := 0
	kept := s.order[:0]
	for _, id := range s.order {
		c, ok := s.sessions[id]
		if !ok {
			continue
		}
		if c.LastActivityAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return evicted
}

// Count returns the number of tracked conversations.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
