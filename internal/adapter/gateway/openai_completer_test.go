package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"reply-orchestrator/internal/domain"
)

func TestOpenAICompleterComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		format, ok := req["response_format"].(map[string]interface{})
		if !ok {
			t.Fatal("expected response_format in request")
		}
		if format["type"] != "json_schema" {
			t.Fatalf("expected json_schema format, got %v", format["type"])
		}
		messages, ok := req["messages"].([]interface{})
		if !ok || len(messages) != 2 {
			t.Fatalf("expected 2 messages, got %v", req["messages"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"content":"  {\"reply\":\"hello\"}  "}}],
			"usage":{"prompt_tokens":120,"completion_tokens":30,"total_tokens":150}
		}`))
	}))
	defer server.Close()

	c := NewOpenAICompleter(server.URL, "test-key", "test-model", 1000, 1)
	completion, err := c.Complete(context.Background(),
		[]domain.Message{
			{Role: "system", Content: "you answer comments"},
			{Role: "user", Content: "question"},
		},
		map[string]any{"type": "object"},
		domain.CompletionOptions{Temperature: 0.4, MaxTokens: 256},
	)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completion.Text != `{"reply":"hello"}` {
		t.Fatalf("unexpected text: %q", completion.Text)
	}
	if completion.Usage.PromptTokens != 120 || completion.Usage.CompletionTokens != 30 || completion.Usage.TotalTokens != 150 {
		t.Fatalf("unexpected usage: %+v", completion.Usage)
	}
}

func TestOpenAICompleterComplete_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"usage":{}}`))
	}))
	defer server.Close()

	c := NewOpenAICompleter(server.URL, "", "test-model", 1000, 2)
	completion, err := c.Complete(context.Background(),
		[]domain.Message{{Role: "user", Content: "q"}}, nil, domain.CompletionOptions{})
	if err != nil {
		t.Fatalf("Complete failed after retry: %v", err)
	}
	if completion.Text != "ok" {
		t.Fatalf("unexpected text: %q", completion.Text)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestOpenAICompleterComplete_NoRetryOn400(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewOpenAICompleter(server.URL, "", "test-model", 1000, 3)
	_, err := c.Complete(context.Background(),
		[]domain.Message{{Role: "user", Content: "q"}}, nil, domain.CompletionOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if domain.KindOf(err) != domain.KindDependency {
		t.Fatalf("expected dependency error, got %v", domain.KindOf(err))
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}
}

func TestOpenAICompleterComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[],"usage":{}}`))
	}))
	defer server.Close()

	c := NewOpenAICompleter(server.URL, "", "test-model", 1000, 0)
	_, err := c.Complete(context.Background(),
		[]domain.Message{{Role: "user", Content: "q"}}, nil, domain.CompletionOptions{})
	if err == nil {
		t.Fatal("expected error on empty choices")
	}
}
