package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected auth header %q", got)
		}

		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["model"] != "gpt-4" {
			t.Errorf("Unexpected model %v", payload["model"])
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "gpt-4",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "Good afternoon."}},
			},
			"usage": map[string]int{
				"prompt_tokens":     12,
				"completion_tokens": 3,
				"total_tokens":      15,
			},
		})
	}))
	defer server.Close()

	p := NewOpenAI(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	defer p.Close()

	if !p.Available() {
		t.Fatal("Expected provider with key to be available")
	}

	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("good afternoon")},
		Model:    "gpt-4",
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Content != "Good afternoon." {
		t.Errorf("Unexpected content %q", resp.Content)
	}
	if resp.Usage.PromptTokens != 12 || resp.Usage.CompletionTokens != 3 {
		t.Errorf("Unexpected usage %+v", resp.Usage)
	}
}

func TestOpenAIAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limit reached"},
		})
	}))
	defer server.Close()

	p := NewOpenAI(WithAPIKey("test-key"), WithBaseURL(server.URL))
	defer p.Close()

	_, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("hi")},
	})
	if err == nil {
		t.Fatal("Expected error for 429")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %T", err)
	}
	if !apiErr.IsRateLimited() {
		t.Errorf("Expected rate limited, got status %d", apiErr.StatusCode)
	}
	if apiErr.Message != "rate limit reached" {
		t.Errorf("Unexpected message %q", apiErr.Message)
	}
}

func TestOpenAIMissingKeyIsUnavailable(t *testing.T) {
	p := NewOpenAI()
	defer p.Close()

	if p.Available() {
		t.Error("Expected provider without key to be unavailable")
	}
	if _, err := p.Chat(context.Background(), &ChatRequest{}); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}
