package notify

import (
	"strings"
	"time"
)

// Card is the structured representation sent alongside the text for
// alert and incident payloads. The platform layer renders it as an
// attachment; everything here is plain data.
type Card struct {
	Title     string       `json:"title"`
	Severity  string       `json:"severity"`
	Category  string       `json:"category"`
	Source    string       `json:"source,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Body      string       `json:"body"`
	Facts     []CardFact   `json:"facts,omitempty"`
	Actions   []CardAction `json:"actions"`
}

// CardFact is a labelled detail row on a card.
type CardFact struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// CardAction is an affordance button on a card.
type CardAction struct {
	Title string `json:"title"`
	Verb  string `json:"verb"`
}

// Message is one formatted outbound notification.
type Message struct {
	Text string
	Card *Card // nil for plain update/reminder payloads
}

// buildMessage formats a payload into the outbound message for one
// recipient. Every text is prefixed with the priority marker; alert and
// incident kinds additionally carry a card.
func buildMessage(p Payload) Message {
	marker := Marker(p.Priority)

	var sb strings.Builder
	sb.WriteString(marker)
	sb.WriteString(" ")
	if p.Title != "" {
		sb.WriteString(p.Title)
		sb.WriteString("\n\n")
	}
	sb.WriteString(p.Body)

	msg := Message{Text: sb.String()}
	if p.Kind != KindAlert && p.Kind != KindIncident {
		return msg
	}

	card := &Card{
		Title:     p.Title,
		Severity:  string(p.Priority),
		Category:  categoryLabel(p),
		Timestamp: time.Now().UTC(),
		Body:      p.Body,
	}
	if p.Alert != nil {
		card.Source = p.Alert.Source
		card.Timestamp = p.Alert.Timestamp
		if len(p.Alert.AffectedSystems) > 0 {
			card.Facts = append(card.Facts, CardFact{
				Label: "Affected systems",
				Value: strings.Join(p.Alert.AffectedSystems, ", "),
			})
		}
		if len(p.Alert.RecommendedActions) > 0 {
			card.Facts = append(card.Facts, CardFact{
				Label: "Recommended actions",
				Value: strings.Join(p.Alert.RecommendedActions, "; "),
			})
		}
	}

	switch p.Kind {
	case KindAlert:
		card.Actions = []CardAction{
			{Title: "Acknowledge", Verb: "acknowledge"},
			{Title: "Escalate", Verb: "escalate"},
		}
	case KindIncident:
		card.Actions = []CardAction{
			{Title: "Start Response", Verb: "startResponse"},
			{Title: "View Details", Verb: "viewDetails"},
		}
	}

	msg.Card = card
	return msg
}

func categoryLabel(p Payload) string {
	if p.Alert != nil {
		return string(p.Alert.Category)
	}
	return string(p.Kind)
}
