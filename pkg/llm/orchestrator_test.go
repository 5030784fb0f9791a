package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/majordomo-ai/majordomo/pkg/budget"
)

func testLedger(t *testing.T, limits map[string]map[budget.Period]float64) *budget.Ledger {
	t.Helper()
	opts := []budget.Option{}
	if limits != nil {
		opts = append(opts, budget.WithLimits(limits))
	}
	l, err := budget.NewLedger(&budget.MemoryStore{}, opts...)
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	return l
}

func TestCascadeOrder(t *testing.T) {
	ctx := context.Background()

	a := Unavailable("alpha")
	b := WithChatError("bravo", errors.New("bravo down"))
	c := NewMock("charlie")

	orch, err := NewOrchestrator(testLedger(t, nil), []Provider{a, b, c})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	defer orch.Close()

	result, err := orch.Respond(ctx, "hello there")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if result.Source != "charlie" {
		t.Errorf("Expected charlie to answer, got %q", result.Source)
	}
	if a.Calls() != 0 {
		t.Error("Unavailable provider must never be invoked")
	}
	if b.Calls() == 0 {
		t.Error("Expected failing provider to be attempted before cascading")
	}
	if result.Emergency {
		t.Error("Emergency must not trigger when a provider succeeds")
	}
}

func TestEmergencyGuarantee(t *testing.T) {
	ctx := context.Background()

	providers := []Provider{
		Unavailable("alpha"),
		WithChatError("bravo", errors.New("bravo down")),
		WithChatError("charlie", errors.New("charlie down")),
	}

	orch, _ := NewOrchestrator(testLedger(t, nil), providers)
	defer orch.Close()

	result, err := orch.Respond(ctx, "hello there")
	if err != nil {
		t.Fatalf("Respond must never fail when emergency is terminal: %v", err)
	}
	if !result.Emergency {
		t.Error("Expected result flagged as emergency")
	}
	if result.Source != "emergency" {
		t.Errorf("Expected source emergency, got %q", result.Source)
	}
	if result.Cost != 0 {
		t.Errorf("Emergency responses are free, got cost %v", result.Cost)
	}
	if result.Response == "" {
		t.Error("Expected a non-empty canned response")
	}
}

func TestBudgetDenialSkipsWithoutAttempt(t *testing.T) {
	ctx := context.Background()

	ledger := testLedger(t, map[string]map[budget.Period]float64{
		"pricey": {budget.Daily: 0.10},
	})
	ledger.RecordUsage("pricey", 0.10) // daily budget already spent

	prices := budget.NewPriceTable()
	prices.SetChatPrice("pricey", "pricey-model", budget.ModelPrice{Input: 0.01, Output: 0.01})

	denied := NewMock("pricey")
	backup := NewMock("backup")

	orch, _ := NewOrchestrator(ledger, []Provider{denied, backup}, WithPriceTable(prices))
	defer orch.Close()

	result, err := orch.Respond(ctx, "hello")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if denied.Calls() != 0 {
		t.Error("Budget denial must skip the provider without a network call")
	}
	if result.Source != "backup" {
		t.Errorf("Expected backup to answer, got %q", result.Source)
	}
}

func TestNoBillingOnFailure(t *testing.T) {
	ctx := context.Background()

	ledger := testLedger(t, map[string]map[budget.Period]float64{
		"flaky": {budget.Daily: 1.00},
	})
	prices := budget.NewPriceTable()
	prices.SetChatPrice("flaky", "flaky-model", budget.ModelPrice{Input: 0.0001, Output: 0.0001})

	flaky := WithChatError("flaky", errors.New("boom"))

	orch, _ := NewOrchestrator(ledger, []Provider{flaky}, WithPriceTable(prices))
	defer orch.Close()

	if _, err := orch.Respond(ctx, "hello"); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if got := ledger.Usage("flaky", budget.Daily); got != 0 {
		t.Errorf("Failed attempt must record no cost, got %v", got)
	}
}

func TestSuccessRecordsActualCost(t *testing.T) {
	ctx := context.Background()

	ledger := testLedger(t, map[string]map[budget.Period]float64{
		"mock": {budget.Daily: 1.00},
	})
	prices := budget.NewPriceTable()
	prices.SetChatPrice("mock", "mock-model", budget.ModelPrice{Input: 0.001, Output: 0.002})

	// Mock reports 10 prompt + 5 completion tokens.
	orch, _ := NewOrchestrator(ledger, []Provider{NewMock("mock")}, WithPriceTable(prices))
	defer orch.Close()

	result, err := orch.Respond(ctx, "hello")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	want := 10*0.001 + 5*0.002
	if diff := result.Cost - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected cost %v, got %v", want, result.Cost)
	}
	if got := ledger.Usage("mock", budget.Daily); got != result.Cost {
		t.Errorf("Ledger usage %v does not match result cost %v", got, result.Cost)
	}
}

func TestModelsTriedInOrder(t *testing.T) {
	ctx := context.Background()

	var tried []string
	p := NewMock("multi")
	p.ModelsValue = []string{"big", "small"}
	p.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		tried = append(tried, req.Model)
		if req.Model == "big" {
			return nil, errors.New("big overloaded")
		}
		return &ChatResponse{Content: "ok", Model: req.Model}, nil
	}

	orch, _ := NewOrchestrator(testLedger(t, nil), []Provider{p})
	defer orch.Close()

	result, err := orch.Respond(ctx, "hello")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if len(tried) != 2 || tried[0] != "big" || tried[1] != "small" {
		t.Errorf("Expected models tried in declared order, got %v", tried)
	}
	if result.Model != "small" {
		t.Errorf("Expected fallback model small, got %q", result.Model)
	}
}

func TestSuccessAppendsHistory(t *testing.T) {
	ctx := context.Background()

	orch, _ := NewOrchestrator(testLedger(t, nil), []Provider{NewMock("mock")})
	defer orch.Close()

	if _, err := orch.Respond(ctx, "first question"); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	msgs := orch.History().Messages()
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "first question" {
		t.Errorf("Unexpected first history entry: %+v", msgs[0])
	}
	if msgs[1].Role != RoleAssistant {
		t.Errorf("Unexpected second history entry: %+v", msgs[1])
	}
}

func TestSystemPromptLeadsMessageSet(t *testing.T) {
	ctx := context.Background()

	var seen []Message
	p := NewMock("mock")
	p.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		seen = req.Messages
		return &ChatResponse{Content: "ok", Model: "mock-model"}, nil
	}

	orch, _ := NewOrchestrator(testLedger(t, nil), []Provider{p},
		WithSystemPrompt("You are a helpful butler."))
	defer orch.Close()

	if _, err := orch.Respond(ctx, "hello"); err != nil {
		t.Fatalf("Respond failed: %v", err)
	}

	if len(seen) < 2 || seen[0].Role != RoleSystem {
		t.Fatalf("Expected system message first, got %+v", seen)
	}
	if seen[len(seen)-1].Role != RoleUser || seen[len(seen)-1].Content != "hello" {
		t.Errorf("Expected user input last, got %+v", seen[len(seen)-1])
	}
}

func TestRespondHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch, _ := NewOrchestrator(testLedger(t, nil), []Provider{NewMock("mock")})
	defer orch.Close()

	if _, err := orch.Respond(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestProviderStatesIncludeEmergency(t *testing.T) {
	orch, _ := NewOrchestrator(testLedger(t, nil), []Provider{Unavailable("alpha")})
	defer orch.Close()

	states := orch.ProviderStates()
	if len(states) != 2 {
		t.Fatalf("Expected 2 states, got %d", len(states))
	}
	last := states[len(states)-1]
	if last.Name != "emergency" || !last.Available {
		t.Errorf("Expected terminal emergency state, got %+v", last)
	}
	if states[0].Available {
		t.Error("Expected alpha to report unavailable")
	}
}

func TestLongHistoryIsCompressed(t *testing.T) {
	ctx := context.Background()

	var seen []Message
	p := NewMock("mock")
	p.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		seen = req.Messages
		return &ChatResponse{Content: "ok", Model: "mock-model"}, nil
	}

	orch, _ := NewOrchestrator(testLedger(t, nil), []Provider{p},
		WithMaxContextTokens(100))
	defer orch.Close()

	// Preload a history far beyond 100 tokens.
	long := strings.Repeat("word ", 100)
	for i := 0; i < 5; i++ {
		orch.History().AppendExchange(long, long)
	}

	result, err := orch.Respond(ctx, "latest question")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if !result.ContextCompressed {
		t.Error("Expected context_compressed to be reported")
	}

	// Everything except the trailing user input must fit the budget.
	total := 0
	for _, m := range seen[:len(seen)-1] {
		total += budget.EstimateTokens(m.Content)
	}
	if total > 100 {
		t.Errorf("Compressed context estimated at %d tokens, budget 100", total)
	}
}
