package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaProbeAndChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/generate":
			var payload struct {
				Prompt string `json:"prompt"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			if !strings.Contains(payload.Prompt, "Human: hello") {
				t.Errorf("Expected flattened prompt, got %q", payload.Prompt)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"response":          " local answer ",
				"prompt_eval_count": 8,
				"eval_count":        4,
			})
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	p := NewOllama(WithBaseURL(server.URL))
	defer p.Close()

	if !p.Available() {
		t.Fatal("Expected reachable server to mark provider available")
	}
	if p.CostTier() != TierFree {
		t.Errorf("Expected free tier, got %v", p.CostTier())
	}

	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("hello")},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "local answer" {
		t.Errorf("Expected trimmed content, got %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 12 {
		t.Errorf("Expected 12 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaUnreachableIsUnavailable(t *testing.T) {
	// Point at a server that is already closed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	p := NewOllama(WithBaseURL(server.URL))
	defer p.Close()

	if p.Available() {
		t.Error("Expected unreachable server to mark provider unavailable")
	}
}
