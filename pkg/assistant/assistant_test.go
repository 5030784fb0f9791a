package assistant

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/majordomo-ai/majordomo/pkg/budget"
	"github.com/majordomo-ai/majordomo/pkg/llm"
	"github.com/majordomo-ai/majordomo/pkg/mcp"
	"github.com/majordomo-ai/majordomo/pkg/speech"
)

func testAssistant(t *testing.T, mock *llm.Mock, opts ...AssistantOption) *Assistant {
	t.Helper()

	ledger, err := budget.NewLedger(&budget.MemoryStore{})
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	orch, err := llm.NewOrchestrator(ledger, []llm.Provider{mock})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	fixed := time.Date(2026, 3, 10, 15, 4, 0, 0, time.UTC)
	router := mcp.NewRouter(mcp.WithRouterClock(func() time.Time { return fixed }))

	a, err := New(orch, nil, router, ledger, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestHandleCapabilityShortCircuit(t *testing.T) {
	mock := llm.NewMock("alpha")
	a := testAssistant(t, mock)

	turn, err := a.Handle(context.Background(), "what time is it")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if turn.Capability != "time" {
		t.Errorf("Expected time capability, got %q", turn.Capability)
	}
	if turn.Source != "mcp_builtin" {
		t.Errorf("Expected builtin source, got %q", turn.Source)
	}
	if !strings.Contains(turn.Response, "3:04 PM") {
		t.Errorf("Expected time in response, got %q", turn.Response)
	}
	if turn.Cost != 0 {
		t.Errorf("Capability turns must be free, got %f", turn.Cost)
	}
	if mock.Calls() != 0 {
		t.Error("LLM must not be consulted for a capability turn")
	}
}

func TestHandleCalculator(t *testing.T) {
	mock := llm.NewMock("alpha")
	a := testAssistant(t, mock)

	turn, err := a.Handle(context.Background(), "calculate 2+2*3 for me")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if turn.Response != "2+2*3 = 8" {
		t.Errorf("Unexpected response %q", turn.Response)
	}
	if mock.Calls() != 0 {
		t.Error("LLM must not be consulted when the calculator answers")
	}
}

func TestHandleFallsBackToLLM(t *testing.T) {
	mock := llm.NewMock("alpha")
	a := testAssistant(t, mock)

	turn, err := a.Handle(context.Background(), "tell me a story")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if turn.Source != "alpha" {
		t.Errorf("Expected LLM source, got %q", turn.Source)
	}
	if turn.Response != "Mock response from alpha" {
		t.Errorf("Unexpected response %q", turn.Response)
	}
}

func TestHandleWeatherStubFallsThroughToLLM(t *testing.T) {
	// The weather keyword routes to the builtin stub, which always
	// reports unavailable; the turn must still get an answer.
	mock := llm.NewMock("alpha")
	a := testAssistant(t, mock)

	turn, err := a.Handle(context.Background(), "how is the weather today")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if turn.Source != "alpha" {
		t.Errorf("Expected LLM fallback, got %q", turn.Source)
	}
	if mock.Calls() != 1 {
		t.Errorf("Expected one LLM call, got %d", mock.Calls())
	}
}

func TestHandleSpeaksResponse(t *testing.T) {
	ledger, err := budget.NewLedger(&budget.MemoryStore{})
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	orch, err := llm.NewOrchestrator(ledger, []llm.Provider{llm.NewMock("alpha")})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	voice := speech.NewMock("gtts")
	speaker, err := speech.NewSpeaker(ledger, []speech.Provider{voice})
	if err != nil {
		t.Fatalf("NewSpeaker failed: %v", err)
	}
	router := mcp.NewRouter()

	a, err := New(orch, speaker, router, ledger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	turn, err := a.Handle(context.Background(), "tell me a story")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if turn.Spoken == nil || turn.Spoken.Tier != "gtts" {
		t.Errorf("Expected spoken result, got %+v", turn.Spoken)
	}
	if calls := voice.Calls(); len(calls) != 1 || calls[0] != turn.Response {
		t.Errorf("Voice tier should speak the response, got %v", calls)
	}
}

func TestHandleMuted(t *testing.T) {
	mock := llm.NewMock("alpha")
	a := testAssistant(t, mock, WithMute(true))

	turn, err := a.Handle(context.Background(), "tell me a story")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if turn.Spoken != nil {
		t.Error("Muted assistant must not speak")
	}
}

func TestHandleEmptyInput(t *testing.T) {
	a := testAssistant(t, llm.NewMock("alpha"))
	if _, err := a.Handle(context.Background(), "  "); err == nil {
		t.Error("Expected error for empty input")
	}
}

func TestHandleAsync(t *testing.T) {
	a := testAssistant(t, llm.NewMock("alpha"))

	out, err := a.HandleAsync(context.Background(), "tell me a story")
	if err != nil {
		t.Fatalf("HandleAsync failed: %v", err)
	}
	outcome := <-out
	if outcome.Err != nil {
		t.Fatalf("Async turn failed: %v", outcome.Err)
	}
	if outcome.Turn.Source != "alpha" {
		t.Errorf("Unexpected source %q", outcome.Turn.Source)
	}
}

func TestStatusAggregates(t *testing.T) {
	a := testAssistant(t, llm.NewMock("alpha"))

	s := a.Status()
	if _, ok := s.Budget["openai"]; !ok {
		t.Error("Expected default budget services in status")
	}
	if len(s.Providers) != 2 { // mock + emergency
		t.Errorf("Expected 2 provider states, got %d", len(s.Providers))
	}
	if len(s.Agents.Capabilities) == 0 {
		t.Error("Expected builtin capabilities in status")
	}
}

func TestExtractExpression(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"calculate 2+2*3 for me", "2+2*3"},
		{"calculate (1.5 + 2) * 4", "(1.5 + 2) * 4"},
		{"calculate", ""},
	}
	for _, tt := range tests {
		if got := extractExpression(tt.input); got != tt.want {
			t.Errorf("extractExpression(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(DefaultWorkers)
	defer p.Close()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := p.Submit(context.Background(), func() {
			defer wg.Done()
			count.Add(1)
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	wg.Wait()
	if count.Load() != 20 {
		t.Errorf("Expected 20 tasks run, got %d", count.Load())
	}
}

func TestPoolSubmitAfterClose(t *testing.T) {
	p := NewPool(MinWorkers)
	p.Close()

	err := p.Submit(context.Background(), func() {})
	if err != ErrPoolClosed {
		t.Errorf("Expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolClampsWorkers(t *testing.T) {
	// Out-of-range sizes are clamped, never rejected.
	for _, n := range []int{0, 1, 100} {
		p := NewPool(n)
		if err := p.Submit(context.Background(), func() {}); err != nil {
			t.Errorf("NewPool(%d) pool not functional: %v", n, err)
		}
		p.Close()
	}
}
