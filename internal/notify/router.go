package notify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/castellan/castellan/internal/alert"
	"github.com/castellan/castellan/internal/session"
)

// HandleSource enumerates the conversations reachable for proactive
// delivery. Implemented by *session.Store.
type HandleSource interface {
	DeliveryHandles() []session.Handle
}

// Gate decides whether a user should receive a given notification.
// Implemented by *prefs.Store.
type Gate interface {
	ShouldNotify(userID, category, priority string) (bool, error)
}

// Sender is the chat-platform send primitive. Implemented by
// *platform.Client.
type Sender interface {
	Send(ctx context.Context, deliveryHandle string, msg Message) error
}

// Delivery is the per-recipient outcome of a fanout.
type Delivery struct {
	ConversationID string
	UserID         string
	Err            error
}

// Result aggregates a fanout batch. Deliveries holds one entry per
// attempted recipient; Delivered counts the successes.
type Result struct {
	Attempted  int
	Delivered  int
	Deliveries []Delivery
}

// Router owns no persistent state: it orchestrates the session store,
// the preference gate, and the platform sender.
type Router struct {
	sessions HandleSource
	gate     Gate
	sender   Sender
	logger   *slog.Logger
}

// NewRouter creates a Router over the given collaborators.
func NewRouter(sessions HandleSource, gate Gate, sender Sender) *Router {
	return &Router{
		sessions: sessions,
		gate:     gate,
		sender:   sender,
		logger:   slog.Default(),
	}
}

// SendAlert fans a security alert out as an alert-kind payload whose
// priority mirrors the alert severity.
func (r *Router) SendAlert(ctx context.Context, a alert.Alert, targetUserIDs []string) Result {
	return r.Fanout(ctx, Payload{
		Kind:          KindAlert,
		Priority:      a.Severity,
		Title:         a.Title,
		Body:          a.Description,
		Alert:         &a,
		TargetUserIDs: targetUserIDs,
	})
}

// SendMessage fans a plain proactive message out as an update-kind
// payload.
func (r *Router) SendMessage(ctx context.Context, title, text string, priority alert.Severity, targetUserIDs, targetChannelIDs []string) Result {
	return r.Fanout(ctx, Payload{
		Kind:             KindUpdate,
		Priority:         priority,
		Title:            title,
		Body:             text,
		TargetUserIDs:    targetUserIDs,
		TargetChannelIDs: targetChannelIDs,
	})
}

// Fanout delivers one payload to every eligible conversation. Recipients
// are filtered first by the payload's explicit user and channel target
// sets, then by the preference gate. Dispatch runs concurrently per recipient; one
// recipient's failure never blocks the rest, and each failure is logged
// individually. The batch has no atomicity: a partial failure leaves some
// recipients notified and others not, surfaced only via the Result.
func (r *Router) Fanout(ctx context.Context, p Payload) Result {
	var recipients []session.Handle
	for _, h := range r.sessions.DeliveryHandles() {
		if !p.targets(h.UserID, h.ConversationID) {
			continue
		}
		allowed, err := r.gate.ShouldNotify(h.UserID, string(p.Kind), string(p.Priority))
		if err != nil {
			r.logger.Warn("preference check failed, skipping recipient",
				"user_id", h.UserID, "error", err)
			continue
		}
		if !allowed {
			continue
		}
		recipients = append(recipients, h)
	}

	msg := buildMessage(p)
	deliveries := make([]Delivery, len(recipients))

	var g errgroup.Group
	for i, h := range recipients {
		g.Go(func() error {
			err := r.sender.Send(ctx, h.DeliveryHandle, msg)
			deliveries[i] = Delivery{
				ConversationID: h.ConversationID,
				UserID:         h.UserID,
				Err:            err,
			}
			if err != nil {
				r.logger.Warn("notification dispatch failed",
					"conversation_id", h.ConversationID,
					"user_id", h.UserID,
					"kind", p.Kind,
					"error", err)
			}
			return nil
		})
	}
	g.Wait()

	result := Result{
		Attempted:  len(recipients),
		Deliveries: deliveries,
	}
	for _, d := range deliveries {
		if d.Err == nil {
			result.Delivered++
		}
	}
	return result
}
