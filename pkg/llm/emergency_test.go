package llm

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestEmergencyIntents(t *testing.T) {
	e := NewEmergency()
	e.now = func() time.Time {
		return time.Date(2026, 3, 10, 15, 4, 0, 0, time.UTC)
	}

	tests := []struct {
		input string
		want  string
	}{
		{"what time is it?", "3:04 PM"},
		{"how is the weather today", "unable to check the weather"},
		{"hello there", "emergency mode"},
		{"thanks a lot", "You're welcome"},
		{"goodbye now", "Goodbye"},
		{"give me a status report", "Core systems"},
	}

	for _, tt := range tests {
		got := e.Respond(tt.input)
		if !strings.Contains(got, tt.want) {
			t.Errorf("Respond(%q) = %q, want substring %q", tt.input, got, tt.want)
		}
	}
}

func TestEmergencyUnknownUsesCannedFallback(t *testing.T) {
	e := NewEmergency()
	e.pick = func(n int) int { return 0 }

	got := e.Respond("explain quantum chromodynamics")
	if got != fallbackResponses[0] {
		t.Errorf("Expected first canned fallback, got %q", got)
	}
}

func TestEmergencyNeverFails(t *testing.T) {
	e := NewEmergency()

	resp, err := e.Chat(context.Background(), &ChatRequest{
		Messages: []Message{NewUserMessage("anything at all")},
	})
	if err != nil {
		t.Fatalf("Emergency chat must never fail: %v", err)
	}
	if resp.Content == "" {
		t.Error("Expected a non-empty response")
	}
	if !e.Available() {
		t.Error("Emergency must always report available")
	}
}
