package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeBackend implements just enough of the thread protocol for the
// client: one thread, one run that completes after a poll, one reply.
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()

	polled := false
	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "th-1"})
	})
	mux.HandleFunc("POST /threads/th-1/messages", func(w http.ResponseWriter, r *http.Request) {
		var msg map[string]string
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("bad message body: %v", err)
		}
		if msg["role"] != "user" {
			t.Errorf("message role = %q, want user", msg["role"])
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("POST /threads/th-1/runs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["agent_id"] != "agent-7" {
			t.Errorf("agent_id = %q, want agent-7", body["agent_id"])
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "run-1", "status": "in_progress"})
	})
	mux.HandleFunc("GET /threads/th-1/runs/run-1", func(w http.ResponseWriter, r *http.Request) {
		polled = true
		json.NewEncoder(w).Encode(map[string]string{"id": "run-1", "status": "completed"})
	})
	mux.HandleFunc("GET /threads/th-1/messages", func(w http.ResponseWriter, r *http.Request) {
		if !polled {
			t.Error("messages fetched before the run completed")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"role": "assistant", "content": "Patch CVE-2026-1234 on the edge hosts first."},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateThread(t *testing.T) {
	srv := fakeBackend(t)
	c := NewClient(srv.URL, "agent-7")

	id, err := c.CreateThread(context.Background())
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}
	if id != "th-1" {
		t.Errorf("thread id = %q, want th-1", id)
	}
}

func TestCreateThread_EmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "agent-7")
	if _, err := c.CreateThread(context.Background()); err == nil {
		t.Fatal("expected error for empty thread id")
	}
}

func TestSendMessage(t *testing.T) {
	srv := fakeBackend(t)
	c := NewClient(srv.URL, "agent-7")

	reply, err := c.SendMessage(context.Background(), "th-1", "what should we patch first?")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if !strings.Contains(reply, "CVE-2026-1234") {
		t.Errorf("reply = %q, want assistant content", reply)
	}
}

func TestSendMessage_RunFailed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /threads/th-1/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("POST /threads/th-1/runs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "run-1", "status": "failed", "error": "model overloaded"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "agent-7")
	_, err := c.SendMessage(context.Background(), "th-1", "hello")
	if err == nil {
		t.Fatal("expected error for failed run")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error = %v, want backend failure detail", err)
	}
}

func TestSendMessage_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "agent-7")
	_, err := c.SendMessage(context.Background(), "th-1", "hello")
	if err == nil {
		t.Fatal("expected error for 503 backend")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %v, want status surfaced", err)
	}
}
