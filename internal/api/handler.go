// Package api exposes the HTTP surface: the chat-platform message
// endpoint, the out-of-band notification/alert endpoints, and health.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/castellan/castellan/internal/alert"
	"github.com/castellan/castellan/internal/assistant"
	"github.com/castellan/castellan/internal/notify"
	"github.com/castellan/castellan/internal/prefs"
	"github.com/castellan/castellan/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

// MessageHandler processes one inbound chat message and returns the
// reply text. Implemented by *assistant.Assistant.
type MessageHandler interface {
	HandleMessage(ctx context.Context, in assistant.Inbound) string
}

// Notifier fans payloads out to known conversations. Implemented by
// *notify.Router.
type Notifier interface {
	SendAlert(ctx context.Context, a alert.Alert, targetUserIDs []string) notify.Result
	SendMessage(ctx context.Context, title, text string, priority alert.Severity, targetUserIDs, targetChannelIDs []string) notify.Result
}

// PreferenceWriter updates notification preferences and reports storage
// health. Implemented by *prefs.Store.
type PreferenceWriter interface {
	Set(userID string, p prefs.Preference) error
	Ping() error
}

// Deps holds the collaborators for the HTTP handler.
type Deps struct {
	Assistant       MessageHandler
	Router          Notifier
	Sessions        *session.Store
	Prefs           PreferenceWriter
	APIKey          string
	AgentConfigured bool
}

// NewHandler builds the chi router for the full HTTP surface.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Post("/api/messages", handleMessages(deps))
	r.Get("/api/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(KeyAuth(deps.APIKey))
		r.Post("/api/notification", handleNotification(deps))
		r.Post("/api/securityAlert", handleSecurityAlert(deps))
		r.Put("/api/preferences/{userID}", handleSetPreferences(deps))
	})

	return r
}

// activityEnvelope is the subset of the platform activity schema the
// engine consumes.
type activityEnvelope struct {
	Type string `json:"type"`
	Text string `json:"text"`
	From struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
	ServiceURL string `json:"serviceUrl"`
}

func handleMessages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var activity activityEnvelope
		if err := json.NewDecoder(r.Body).Decode(&activity); err != nil {
			writeError(w, http.StatusBadRequest, "invalid activity envelope: %v", err)
			return
		}

		// Non-message activities (typing, membership changes) are
		// acknowledged without touching the engine.
		if activity.Type != "message" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if activity.Conversation.ID == "" {
			writeError(w, http.StatusBadRequest, "conversation.id is required")
			return
		}

		reply := deps.Assistant.HandleMessage(r.Context(), assistant.Inbound{
			ConversationID: activity.Conversation.ID,
			UserID:         activity.From.ID,
			UserName:       activity.From.Name,
			Text:           activity.Text,
			DeliveryHandle: deliveryHandle(activity),
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"type": "message",
			"text": reply,
		})
	}
}

// deliveryHandle derives the opaque proactive-send address for a
// conversation from its inbound activity.
func deliveryHandle(a activityEnvelope) string {
	if a.ServiceURL == "" {
		return ""
	}
	return strings.TrimRight(a.ServiceURL, "/") + "/v3/conversations/" + a.Conversation.ID + "/activities"
}

type notificationRequest struct {
	Prompt          string   `json:"prompt"`
	Title           string   `json:"title"`
	NotificationURL string   `json:"notificationUrl"`
	TargetUsers     []string `json:"targetUsers"`
	TargetChannels  []string `json:"targetChannels"`
}

func handleNotification(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req notificationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		body := req.Prompt
		if req.NotificationURL != "" {
			body += "\n\n" + req.NotificationURL
		}

		result := deps.Router.SendMessage(r.Context(), req.Title, body, alert.SeverityMedium, req.TargetUsers, req.TargetChannels)

		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"message":        fmt.Sprintf("notification delivered to %d of %d recipients", result.Delivered, result.Attempted),
			"recipientCount": result.Delivered,
		})
	}
}

type securityAlertRequest struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Severity           string   `json:"severity"`
	Category           string   `json:"category"`
	Source             string   `json:"source"`
	AffectedSystems    []string `json:"affectedSystems"`
	RecommendedActions []string `json:"recommendedActions"`
	TargetUsers        []string `json:"targetUsers"`
}

func handleSecurityAlert(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req securityAlertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		for _, field := range []struct{ name, value string }{
			{"id", req.ID},
			{"title", req.Title},
			{"description", req.Description},
		} {
			if strings.TrimSpace(field.value) == "" {
				writeError(w, http.StatusBadRequest, "%s is required", field.name)
				return
			}
		}

		a := alert.Alert{
			ID:                 req.ID,
			Title:              req.Title,
			Description:        req.Description,
			Severity:           alert.ParseSeverity(req.Severity),
			Category:           alert.ParseCategory(req.Category),
			Source:             req.Source,
			Timestamp:          time.Now().UTC(),
			AffectedSystems:    req.AffectedSystems,
			RecommendedActions: req.RecommendedActions,
		}

		result := deps.Router.SendAlert(r.Context(), a, req.TargetUsers)

		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"message":        fmt.Sprintf("alert delivered to %d of %d recipients", result.Delivered, result.Attempted),
			"recipientCount": result.Delivered,
			"alertId":        a.ID,
		})
	}
}

type preferencesRequest struct {
	AllowedCategories []string `json:"allowedCategories"`
	QuietHours        *struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"quietHours"`
	CriticalOnly bool `json:"criticalOnly"`
}

func handleSetPreferences(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		userID := chi.URLParam(r, "userID")
		var req preferencesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		p := prefs.Preference{
			AllowedCategories: req.AllowedCategories,
			CriticalOnly:      req.CriticalOnly,
		}
		if req.QuietHours != nil {
			start, err := parseMinuteOfDay(req.QuietHours.Start)
			if err != nil {
				writeError(w, http.StatusBadRequest, "quietHours.start: %v", err)
				return
			}
			end, err := parseMinuteOfDay(req.QuietHours.End)
			if err != nil {
				writeError(w, http.StatusBadRequest, "quietHours.end: %v", err)
				return
			}
			p.QuietHours = &prefs.QuietWindow{StartMinute: start, EndMinute: end}
		}

		if err := deps.Prefs.Set(userID, p); err != nil {
			writeFailure(w, "failed to save preferences", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "preferences saved",
		})
	}
}

// parseMinuteOfDay converts "HH:MM" to minutes since midnight.
func parseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		failures := 0

		if deps.Prefs != nil {
			if err := deps.Prefs.Ping(); err != nil {
				checks["preferences"] = "failed: " + err.Error()
				failures++
			} else {
				checks["preferences"] = "ok"
			}
		}
		if deps.Sessions != nil {
			checks["sessions"] = "ok"
		}
		if deps.AgentConfigured {
			checks["agent"] = "ok"
		} else {
			checks["agent"] = "not configured"
			failures++
		}

		status := "healthy"
		code := http.StatusOK
		switch {
		case failures == 1:
			status = "degraded"
			code = http.StatusServiceUnavailable
		case failures > 1:
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		body := map[string]any{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    checks,
		}
		if deps.Sessions != nil {
			body["conversationStats"] = deps.Sessions.Snapshot()
		}

		w.Header().Set("Cache-Control", "no-cache")
		writeJSON(w, code, body)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// writeError emits the flat {"error": ...} shape used for rejected input.
func writeError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{
		"error": fmt.Sprintf(format, args...),
	})
}

// writeFailure emits the structured 500 response for internal errors.
func writeFailure(w http.ResponseWriter, message string, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success":      false,
		"message":      message,
		"errorDetails": err.Error(),
	})
}
