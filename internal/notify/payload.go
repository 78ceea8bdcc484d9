// Package notify fans proactive notifications out to known
// conversations, filtered per user preference.
package notify

import (
	"github.com/castellan/castellan/internal/alert"
)

// Kind distinguishes what a payload announces.
type Kind string

const (
	KindAlert    Kind = "alert"
	KindIncident Kind = "incident"
	KindUpdate   Kind = "update"
	KindReminder Kind = "reminder"
)

// Payload is the dispatch-time wrapper handed to Fanout.
type Payload struct {
	Kind     Kind
	Priority alert.Severity
	Title    string
	Body     string
	Alert    *alert.Alert // set for alert/incident kinds

	// When either target set is non-empty, delivery is restricted to
	// the union of the named users and conversations; otherwise the
	// payload broadcasts to all known sessions.
	TargetUserIDs    []string
	TargetChannelIDs []string
}

// targets reports whether the payload's explicit recipient sets admit a
// session. Empty sets admit everyone; otherwise a session qualifies by
// user id or by conversation id.
func (p Payload) targets(userID, conversationID string) bool {
	if len(p.TargetUserIDs) == 0 && len(p.TargetChannelIDs) == 0 {
		return true
	}
	for _, id := range p.TargetUserIDs {
		if id == userID {
			return true
		}
	}
	for _, id := range p.TargetChannelIDs {
		if id == conversationID {
			return true
		}
	}
	return false
}

// priorityMarkers map each priority tier to the glyph prefixed to every
// outbound text. Unrecognized priorities get the fallback bell.
var priorityMarkers = map[alert.Severity]string{
	alert.SeverityCritical: "\U0001F6A8", // 🚨
	alert.SeverityHigh:     "⚠️", // ⚠️
	alert.SeverityMedium:   "\U0001F4E2", // 📢
	alert.SeverityLow:      "ℹ️", // ℹ️
}

const fallbackMarker = "\U0001F514" // 🔔

// Marker returns the glyph for a priority tier.
func Marker(priority alert.Severity) string {
	if m, ok := priorityMarkers[priority]; ok {
		return m
	}
	return fallbackMarker
}
