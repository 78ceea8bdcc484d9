// Package agent talks to the remote thread-based conversational AI
// backend and correlates chat conversations to backend threads.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	createThreadTimeout = 10 * time.Second
	runTimeout          = 60 * time.Second
	runPollInterval     = time.Second
)

// Client communicates with the AI backend over HTTP. The backend's unit
// of conversational memory is a thread: messages are appended to a
// thread, a run executes the agent against it, and the newest assistant
// message is the reply.
type Client struct {
	baseURL    string
	agentID    string
	httpClient *http.Client
}

// NewClient creates a Client for the given backend base URL and agent id.
func NewClient(baseURL, agentID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		agentID: agentID,
		httpClient: &http.Client{
			Timeout: 0,
		},
	}
}

type threadResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type messageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"data"`
}

// CreateThread asks the backend for a fresh thread and returns its id.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, createThreadTimeout)
	defer cancel()

	var thread threadResponse
	if err := c.post(ctx, "/threads", map[string]any{}, &thread); err != nil {
		return "", fmt.Errorf("creating thread: %w", err)
	}
	if thread.ID == "" {
		return "", fmt.Errorf("creating thread: backend returned empty id")
	}
	return thread.ID, nil
}

// SendMessage appends a user message to the thread, runs the agent, and
// returns the assistant's reply text. It blocks until the run finishes
// or ctx/the run timeout expires.
func (c *Client) SendMessage(ctx context.Context, threadID, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	msg := map[string]string{"role": "user", "content": text}
	if err := c.post(ctx, "/threads/"+threadID+"/messages", msg, nil); err != nil {
		return "", fmt.Errorf("posting message: %w", err)
	}

	var run runResponse
	if err := c.post(ctx, "/threads/"+threadID+"/runs", map[string]string{"agent_id": c.agentID}, &run); err != nil {
		return "", fmt.Errorf("starting run: %w", err)
	}

	if err := c.waitForRun(ctx, threadID, run); err != nil {
		return "", err
	}

	var msgs messageList
	if err := c.get(ctx, "/threads/"+threadID+"/messages?limit=1&order=desc", &msgs); err != nil {
		return "", fmt.Errorf("fetching reply: %w", err)
	}
	for _, m := range msgs.Data {
		if m.Role == "assistant" {
			return m.Content, nil
		}
	}
	return "", fmt.Errorf("fetching reply: no assistant message in thread %s", threadID)
}

func (c *Client) waitForRun(ctx context.Context, threadID string, run runResponse) error {
	for {
		switch run.Status {
		case "completed":
			return nil
		case "failed", "cancelled", "expired":
			if run.Error != "" {
				return fmt.Errorf("run %s %s: %s", run.ID, run.Status, run.Error)
			}
			return fmt.Errorf("run %s %s", run.ID, run.Status)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for run %s: %w", run.ID, ctx.Err())
		case <-time.After(runPollInterval):
		}

		if err := c.get(ctx, "/threads/"+threadID+"/runs/"+run.ID, &run); err != nil {
			return fmt.Errorf("polling run %s: %w", run.ID, err)
		}
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
