// Package platform is the thin adapter over the chat platform's send
// primitive. A delivery handle is an opaque URL captured from an inbound
// activity; proactive sends POST a message activity back to it.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/castellan/castellan/internal/notify"
)

const sendTimeout = 15 * time.Second

// Activity is the minimal outbound activity shape the platform accepts.
type Activity struct {
	Type        string       `json:"type"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment wraps a card for the platform envelope.
type Attachment struct {
	ContentType string       `json:"contentType"`
	Content     *notify.Card `json:"content"`
}

// Client posts activities to delivery handles.
type Client struct {
	token      string
	httpClient *http.Client
}

// NewClient creates a Client. token, when non-empty, is attached as a
// bearer credential; acquiring and refreshing it belongs to the platform
// side.
func NewClient(token string) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: sendTimeout,
		},
	}
}

// Send delivers one formatted message to a delivery handle.
func (c *Client) Send(ctx context.Context, deliveryHandle string, msg notify.Message) error {
	activity := Activity{
		Type: "message",
		Text: msg.Text,
	}
	if msg.Card != nil {
		activity.Attachments = []Attachment{{
			ContentType: "application/vnd.castellan.card",
			Content:     msg.Card,
		}}
	}

	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("marshalling activity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deliveryHandle, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("platform returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
