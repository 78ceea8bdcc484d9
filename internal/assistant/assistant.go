// Package assistant orchestrates the inbound message flow: session
// bookkeeping, context enhancement, thread correlation, and the backend
// AI call.
package assistant

import (
	"context"
	"log/slog"

	"github.com/castellan/castellan/internal/session"
)

// FallbackReply is returned whenever the AI backend cannot produce a
// response. Backend failures degrade to this message instead of
// propagating as protocol errors.
const FallbackReply = "I'm sorry, I couldn't process your request right now. Please try again in a moment."

// ThreadResolver maps conversations to backend threads. Implemented by
// *agent.Correlator.
type ThreadResolver interface {
	Resolve(ctx context.Context, conversationID string) (string, error)
	Invalidate(conversationID string)
}

// Backend executes a message against a backend thread. Implemented by
// *agent.Client.
type Backend interface {
	SendMessage(ctx context.Context, threadID, text string) (string, error)
}

// Inbound is one user message from the chat platform, reduced to the
// fields the engine needs.
type Inbound struct {
	ConversationID string
	UserID         string
	UserName       string
	Text           string
	DeliveryHandle string
}

// Assistant handles inbound messages end to end.
type Assistant struct {
	sessions *session.Store
	threads  ThreadResolver
	backend  Backend
	logger   *slog.Logger
}

// New creates an Assistant over the given collaborators.
func New(sessions *session.Store, threads ThreadResolver, backend Backend) *Assistant {
	return &Assistant{
		sessions: sessions,
		threads:  threads,
		backend:  backend,
		logger:   slog.Default(),
	}
}

// HandleMessage records the message against its session, enhances the
// prompt with conversation context, resolves the backend thread, and
// returns the assistant reply. Backend failures are logged and converted
// to FallbackReply; the mapping is invalidated so the next message gets
// a fresh thread.
func (a *Assistant) HandleMessage(ctx context.Context, in Inbound) string {
	a.sessions.Update(in.ConversationID, in.UserID, in.UserName, in.Text, in.DeliveryHandle)

	prompt := a.sessions.Enhance(in.Text, in.ConversationID)

	threadID, err := a.threads.Resolve(ctx, in.ConversationID)
	if err != nil {
		a.logger.Error("thread resolution failed",
			"conversation_id", in.ConversationID, "error", err)
		return FallbackReply
	}

	reply, err := a.backend.SendMessage(ctx, threadID, prompt)
	if err != nil {
		a.logger.Error("backend message failed",
			"conversation_id", in.ConversationID, "thread_id", threadID, "error", err)
		a.threads.Invalidate(in.ConversationID)
		return FallbackReply
	}
	return reply
}
