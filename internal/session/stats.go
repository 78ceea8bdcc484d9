package session

import (
	"math"
	"time"

	"github.com/castellan/castellan/internal/alert"
)

// activeWindow is how recently a conversation must have seen activity to
// count as active in a snapshot.
const activeWindow = 24 * time.Hour

// Stats is a point-in-time view over the session store, used by health
// reporting.
type Stats struct {
	TotalConversations  int                    `json:"totalConversations"`
	ActiveConversations int                    `json:"activeConversations"`
	TotalMessages       int                    `json:"totalMessages"`
	AverageMessages     int                    `json:"averageMessagesPerConversation"`
	UrgencyDistribution map[alert.Severity]int `json:"urgencyDistribution"`
}

// Snapshot derives statistics from the current session set. No caching;
// every call reads the live store.
func (s *Store) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalConversations: len(s.sessions),
		UrgencyDistribution: map[alert.Severity]int{
			alert.SeverityLow:      0,
			alert.SeverityMedium:   0,
			alert.SeverityHigh:     0,
			alert.SeverityCritical: 0,
		},
	}

	activeCutoff := s.clock.Now().Add(-activeWindow)
	for _, c := range s.sessions {
		stats.TotalMessages += c.MessageCount
		if !c.LastActivityAt.Before(activeCutoff) {
			stats.ActiveConversations++
		}
		stats.UrgencyDistribution[c.InferredUrgency]++
	}

	if stats.TotalConversations > 0 {
		stats.AverageMessages = int(math.Round(float64(stats.TotalMessages) / float64(stats.TotalConversations)))
	}
	return stats
}
