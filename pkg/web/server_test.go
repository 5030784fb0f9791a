package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/majordomo-ai/majordomo/internal/log"
	"github.com/majordomo-ai/majordomo/pkg/assistant"
	"github.com/majordomo-ai/majordomo/pkg/budget"
	"github.com/majordomo-ai/majordomo/pkg/llm"
	"github.com/majordomo-ai/majordomo/pkg/mcp"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	ledger, err := budget.NewLedger(&budget.MemoryStore{})
	if err != nil {
		t.Fatalf("NewLedger failed: %v", err)
	}
	orch, err := llm.NewOrchestrator(ledger, []llm.Provider{llm.NewMock("alpha")})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	a, err := assistant.New(orch, nil, mcp.NewRouter(), ledger)
	if err != nil {
		t.Fatalf("assistant.New failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	return NewServer("0", a, log.L())
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp, raw
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)

	resp, raw := doJSON(t, s, http.MethodGet, "/api/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var status struct {
		Budget    map[string]interface{}   `json:"budget"`
		Providers []map[string]interface{} `json:"providers"`
	}
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if _, ok := status.Budget["openai"]; !ok {
		t.Error("Expected openai budget in status")
	}
	if len(status.Providers) != 2 {
		t.Errorf("Expected mock + emergency providers, got %d", len(status.Providers))
	}
}

func TestAskEndpoint(t *testing.T) {
	s := testServer(t)

	resp, raw := doJSON(t, s, http.MethodPost, "/api/ask", AskRequest{Input: "calculate 2+2*3"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var turn assistant.Turn
	if err := json.Unmarshal(raw, &turn); err != nil {
		t.Fatalf("decode turn: %v", err)
	}
	if turn.Response != "2+2*3 = 8" {
		t.Errorf("Unexpected response %q", turn.Response)
	}
	if turn.Source != "mcp_builtin" {
		t.Errorf("Unexpected source %q", turn.Source)
	}
}

func TestAskRequiresInput(t *testing.T) {
	s := testServer(t)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/ask", AskRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestSetLimitEndpoint(t *testing.T) {
	s := testServer(t)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/budget/limit", SetLimitRequest{
		Service: "openai",
		Period:  "daily",
		Amount:  2.50,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	status := s.assistant.Ledger().Status()
	if status["openai"].Limits[budget.Daily] != 2.50 {
		t.Errorf("Limit not applied: %+v", status["openai"].Limits)
	}
}

func TestSetLimitRejectsBadPeriod(t *testing.T) {
	s := testServer(t)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/budget/limit", SetLimitRequest{
		Service: "openai",
		Period:  "hourly",
		Amount:  1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestAgentLifecycle(t *testing.T) {
	s := testServer(t)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/agents", RegisterAgentRequest{
		Name:         "search_agent",
		Endpoint:     "http://localhost:8001/mcp",
		Capabilities: []string{"web_search"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}

	// Duplicate registration conflicts.
	resp, _ = doJSON(t, s, http.MethodPost, "/api/agents", RegisterAgentRequest{
		Name:     "search_agent",
		Endpoint: "http://localhost:8001/mcp",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate, got %d", resp.StatusCode)
	}

	resp, raw := doJSON(t, s, http.MethodGet, "/api/capabilities", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var caps struct {
		Capabilities []string `json:"capabilities"`
	}
	json.Unmarshal(raw, &caps)
	found := false
	for _, c := range caps.Capabilities {
		if c == "web_search" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected web_search in capabilities, got %v", caps.Capabilities)
	}

	resp, _ = doJSON(t, s, http.MethodDelete, "/api/agents/search_agent", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, s, http.MethodDelete, "/api/agents/search_agent", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown agent, got %d", resp.StatusCode)
	}
}

func TestConversationAndClear(t *testing.T) {
	s := testServer(t)

	doJSON(t, s, http.MethodPost, "/api/ask", AskRequest{Input: "tell me a story"})

	resp, raw := doJSON(t, s, http.MethodGet, "/api/conversation", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var turns []TurnEntry
	json.Unmarshal(raw, &turns)
	if len(turns) != 1 {
		t.Fatalf("Expected 1 turn, got %d", len(turns))
	}

	resp, _ = doJSON(t, s, http.MethodPost, "/api/context/clear", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	_, raw = doJSON(t, s, http.MethodGet, "/api/conversation", nil)
	json.Unmarshal(raw, &turns)
	if len(turns) != 0 {
		t.Errorf("Expected empty conversation after clear, got %d", len(turns))
	}
	if s.assistant.History().Len() != 0 {
		t.Error("Expected LLM history cleared")
	}
}

func TestUsageEndpoint(t *testing.T) {
	s := testServer(t)

	resp, raw := doJSON(t, s, http.MethodGet, "/api/usage", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, raw)
	}
}
