package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/castellan/castellan/internal/alert"
	"github.com/castellan/castellan/internal/session"
)

// staticHandles implements HandleSource over a fixed list.
type staticHandles []session.Handle

func (s staticHandles) DeliveryHandles() []session.Handle { return s }

// allowAll is a Gate that admits everyone.
type allowAll struct{}

func (allowAll) ShouldNotify(userID, category, priority string) (bool, error) { return true, nil }

// denyUsers is a Gate rejecting a fixed set of users; it also records
// what it was asked.
type denyUsers struct {
	mu     sync.Mutex
	denied map[string]bool
	asked  []string
}

func (g *denyUsers) ShouldNotify(userID, category, priority string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.asked = append(g.asked, userID+"/"+category+"/"+priority)
	return !g.denied[userID], nil
}

// recordingSender captures sends and can fail specific handles.
type recordingSender struct {
	mu       sync.Mutex
	sent     []string
	messages []Message
	failFor  map[string]bool
}

func (s *recordingSender) Send(ctx context.Context, handle string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, handle)
	s.messages = append(s.messages, msg)
	if s.failFor[handle] {
		return fmt.Errorf("send to %s refused", handle)
	}
	return nil
}

func threeSessions() staticHandles {
	return staticHandles{
		{ConversationID: "c1", UserID: "u1", DeliveryHandle: "h1"},
		{ConversationID: "c2", UserID: "u2", DeliveryHandle: "h2"},
		{ConversationID: "c3", UserID: "u3", DeliveryHandle: "h3"},
	}
}

func testAlert(sev alert.Severity) alert.Alert {
	return alert.Alert{
		ID:          "a1",
		Title:       "Suspicious outbound traffic",
		Description: "Unusual volume from db-02 to an unknown host.",
		Severity:    sev,
		Category:    alert.CategoryThreat,
		Source:      "netflow-monitor",
		Timestamp:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestFanout_Broadcast(t *testing.T) {
	sender := &recordingSender{}
	r := NewRouter(threeSessions(), allowAll{}, sender)

	result := r.SendAlert(context.Background(), testAlert(alert.SeverityHigh), nil)
	if result.Attempted != 3 || result.Delivered != 3 {
		t.Errorf("result = %+v, want 3 attempted, 3 delivered", result)
	}
	if len(sender.sent) != 3 {
		t.Errorf("sends = %d, want 3", len(sender.sent))
	}
}

func TestFanout_TargetFilter(t *testing.T) {
	sender := &recordingSender{}
	r := NewRouter(threeSessions(), allowAll{}, sender)

	result := r.SendAlert(context.Background(), testAlert(alert.SeverityHigh), []string{"u1"})
	if result.Attempted != 1 || result.Delivered != 1 {
		t.Fatalf("result = %+v, want exactly one recipient", result)
	}
	if sender.sent[0] != "h1" {
		t.Errorf("dispatched to %q, want h1", sender.sent[0])
	}
}

func TestFanout_ChannelFilter(t *testing.T) {
	sender := &recordingSender{}
	r := NewRouter(threeSessions(), allowAll{}, sender)

	a := testAlert(alert.SeverityHigh)
	result := r.Fanout(context.Background(), Payload{
		Kind:             KindAlert,
		Priority:         a.Severity,
		Title:            a.Title,
		Body:             a.Description,
		Alert:            &a,
		TargetChannelIDs: []string{"c1"},
	})
	if result.Attempted != 1 || result.Delivered != 1 {
		t.Fatalf("result = %+v, want exactly one recipient", result)
	}
	if sender.sent[0] != "h1" {
		t.Errorf("dispatched to %q, want h1", sender.sent[0])
	}
}

func TestFanout_UserAndChannelTargetsUnion(t *testing.T) {
	sender := &recordingSender{}
	r := NewRouter(threeSessions(), allowAll{}, sender)

	a := testAlert(alert.SeverityHigh)
	result := r.Fanout(context.Background(), Payload{
		Kind:             KindAlert,
		Priority:         a.Severity,
		Title:            a.Title,
		Body:             a.Description,
		Alert:            &a,
		TargetUserIDs:    []string{"u3"},
		TargetChannelIDs: []string{"c1"},
	})
	if result.Attempted != 2 {
		t.Fatalf("Attempted = %d, want the union of both target sets", result.Attempted)
	}
	for _, h := range sender.sent {
		if h == "h2" {
			t.Error("dispatched to a session outside both target sets")
		}
	}
}

func TestFanout_PreferenceFilter(t *testing.T) {
	gate := &denyUsers{denied: map[string]bool{"u2": true}}
	sender := &recordingSender{}
	r := NewRouter(threeSessions(), gate, sender)

	result := r.SendAlert(context.Background(), testAlert(alert.SeverityCritical), nil)
	if result.Delivered != 2 {
		t.Errorf("Delivered = %d, want 2", result.Delivered)
	}
	for _, h := range sender.sent {
		if h == "h2" {
			t.Error("dispatched to a preference-filtered recipient")
		}
	}
	// The gate is asked with the payload kind and priority.
	if len(gate.asked) != 3 || !strings.HasSuffix(gate.asked[0], "/alert/critical") {
		t.Errorf("gate.asked = %v, want kind/priority per user", gate.asked)
	}
}

func TestFanout_PartialFailure(t *testing.T) {
	sender := &recordingSender{failFor: map[string]bool{"h2": true}}
	r := NewRouter(threeSessions(), allowAll{}, sender)

	result := r.SendAlert(context.Background(), testAlert(alert.SeverityHigh), nil)
	if result.Attempted != 3 {
		t.Errorf("Attempted = %d, want 3 (failure must not block the batch)", result.Attempted)
	}
	if result.Delivered != 2 {
		t.Errorf("Delivered = %d, want 2", result.Delivered)
	}
	failures := 0
	for _, d := range result.Deliveries {
		if d.Err != nil {
			failures++
			if d.ConversationID != "c2" {
				t.Errorf("failure attributed to %s, want c2", d.ConversationID)
			}
		}
	}
	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
}

func TestFanout_AlertMessageShape(t *testing.T) {
	sender := &recordingSender{}
	r := NewRouter(threeSessions()[:1], allowAll{}, sender)

	r.SendAlert(context.Background(), testAlert(alert.SeverityCritical), nil)

	msg := sender.messages[0]
	if !strings.HasPrefix(msg.Text, Marker(alert.SeverityCritical)) {
		t.Errorf("text %q missing critical marker prefix", msg.Text)
	}
	if msg.Card == nil {
		t.Fatal("alert payload must carry a card")
	}
	if msg.Card.Severity != "critical" || msg.Card.Category != "threat" {
		t.Errorf("card = %+v, want severity/category from the alert", msg.Card)
	}
	if msg.Card.Source != "netflow-monitor" {
		t.Errorf("card source = %q", msg.Card.Source)
	}
	if len(msg.Card.Actions) != 2 ||
		msg.Card.Actions[0].Title != "Acknowledge" ||
		msg.Card.Actions[1].Title != "Escalate" {
		t.Errorf("alert card actions = %+v", msg.Card.Actions)
	}
}

func TestFanout_IncidentActions(t *testing.T) {
	sender := &recordingSender{}
	r := NewRouter(threeSessions()[:1], allowAll{}, sender)

	a := testAlert(alert.SeverityHigh)
	r.Fanout(context.Background(), Payload{
		Kind:     KindIncident,
		Priority: a.Severity,
		Title:    a.Title,
		Body:     a.Description,
		Alert:    &a,
	})

	card := sender.messages[0].Card
	if card == nil {
		t.Fatal("incident payload must carry a card")
	}
	if len(card.Actions) != 2 ||
		card.Actions[0].Title != "Start Response" ||
		card.Actions[1].Title != "View Details" {
		t.Errorf("incident card actions = %+v", card.Actions)
	}
}

func TestFanout_UpdateHasNoCard(t *testing.T) {
	sender := &recordingSender{}
	r := NewRouter(threeSessions()[:1], allowAll{}, sender)

	r.SendMessage(context.Background(), "Maintenance", "Patching window at 02:00 UTC.", alert.SeverityMedium, nil, nil)

	msg := sender.messages[0]
	if msg.Card != nil {
		t.Error("update payload must not carry a card")
	}
	if !strings.HasPrefix(msg.Text, Marker(alert.SeverityMedium)) {
		t.Errorf("text %q missing medium marker", msg.Text)
	}
	if !strings.Contains(msg.Text, "Maintenance") || !strings.Contains(msg.Text, "02:00 UTC") {
		t.Errorf("text %q missing title or body", msg.Text)
	}
}

func TestMarker_DistinctPerTier(t *testing.T) {
	seen := map[string]alert.Severity{}
	for _, sev := range []alert.Severity{
		alert.SeverityCritical, alert.SeverityHigh, alert.SeverityMedium, alert.SeverityLow, alert.Severity("bogus"),
	} {
		m := Marker(sev)
		if prev, dup := seen[m]; dup {
			t.Errorf("marker %q shared by %q and %q", m, prev, sev)
		}
		seen[m] = sev
	}
}
