// Package assistant ties the pieces together: capability routing,
// the LLM cascade, voice output and the usage journal, behind one
// turn-based API.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/majordomo-ai/majordomo/pkg/budget"
	"github.com/majordomo-ai/majordomo/pkg/llm"
	"github.com/majordomo-ai/majordomo/pkg/mcp"
	"github.com/majordomo-ai/majordomo/pkg/speech"
	"github.com/majordomo-ai/majordomo/pkg/usage"
)

// capabilityKeywords maps trigger words in a command to the capability
// routed for them. Matching is substring, lowercased.
var capabilityKeywords = []struct {
	keyword    string
	capability string
}{
	{"weather", "weather"},
	{"calculate", "calculator"},
	{"time", "time"},
	{"system", "system_info"},
}

// Turn is the outcome of one user command.
type Turn struct {
	Input             string              `json:"input"`
	Response          string              `json:"response"`
	Source            string              `json:"source"`
	Model             string              `json:"model,omitempty"`
	Capability        string              `json:"capability,omitempty"`
	Cost              float64             `json:"cost"`
	Emergency         bool                `json:"emergency,omitempty"`
	ContextCompressed bool                `json:"context_compressed,omitempty"`
	Spoken            *speech.SpeakResult `json:"spoken,omitempty"`
	Elapsed           time.Duration       `json:"elapsed_ms"`
}

// Assistant runs the turn loop.
type Assistant struct {
	orch     *llm.Orchestrator
	speaker  *speech.Speaker
	router   *mcp.Router
	ledger   *budget.Ledger
	recorder usage.Recorder
	pool     *Pool
	logger   *slog.Logger
	mute     bool
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithRecorder sets the usage journal.
func WithRecorder(r usage.Recorder) AssistantOption {
	return func(a *Assistant) {
		a.recorder = r
	}
}

// WithWorkers sets the pool size.
func WithWorkers(n int) AssistantOption {
	return func(a *Assistant) {
		a.pool.Close()
		a.pool = NewPool(n)
	}
}

// WithMute disables voice output; responses stay text-only.
func WithMute(mute bool) AssistantOption {
	return func(a *Assistant) {
		a.mute = mute
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) AssistantOption {
	return func(a *Assistant) {
		a.logger = logger.With("component", "assistant")
	}
}

// New wires an assistant from its collaborators. The orchestrator,
// router and ledger are required; the speaker may be nil for text-only
// deployments.
func New(orch *llm.Orchestrator, speaker *speech.Speaker, router *mcp.Router, ledger *budget.Ledger, opts ...AssistantOption) (*Assistant, error) {
	if orch == nil {
		return nil, errors.New("assistant: orchestrator is required")
	}
	if router == nil {
		return nil, errors.New("assistant: router is required")
	}
	if ledger == nil {
		return nil, errors.New("assistant: ledger is required")
	}

	a := &Assistant{
		orch:     orch,
		speaker:  speaker,
		router:   router,
		ledger:   ledger,
		recorder: usage.Noop{},
		pool:     NewPool(DefaultWorkers),
		logger:   slog.Default().With("component", "assistant"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Handle processes one command end to end: a matching capability is
// answered by the router at zero cost, anything else goes through the
// LLM cascade, and the response is spoken unless muted.
func (a *Assistant) Handle(ctx context.Context, input string) (*Turn, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("assistant: empty input")
	}

	start := time.Now()
	turn := &Turn{Input: input}

	if capability, ok := detectCapability(input); ok {
		a.logger.Debug("routing to capability", "capability", capability)
		params := map[string]interface{}{"query": input}
		if capability == "calculator" {
			params["expression"] = extractExpression(input)
		}
		res, err := a.router.Route(ctx, capability, params)
		if err == nil {
			turn.Response = renderCapability(capability, res.Data)
			turn.Source = "mcp_" + res.Agent
			turn.Capability = capability
			turn.Elapsed = time.Since(start)
			a.speakTurn(ctx, turn)
			return turn, nil
		}
		a.logger.Warn("capability routing failed, falling back to LLM",
			"capability", capability,
			"error", err)
	}

	result, err := a.orch.Respond(ctx, input)
	if err != nil {
		return nil, err
	}

	turn.Response = result.Response
	turn.Source = result.Source
	turn.Model = result.Model
	turn.Cost = result.Cost
	turn.Emergency = result.Emergency
	turn.ContextCompressed = result.ContextCompressed

	if result.Cost > 0 {
		a.journal(ctx, usage.Entry{
			Service:   result.Source,
			Model:     result.Model,
			Operation: "chat",
			TokensIn:  budget.EstimateTokens(input),
			TokensOut: budget.EstimateTokens(result.Response),
			Cost:      result.Cost,
		})
	}

	a.speakTurn(ctx, turn)
	turn.Elapsed = time.Since(start)
	return turn, nil
}

// HandleAsync queues a turn on the worker pool. The returned channel
// delivers exactly one outcome.
func (a *Assistant) HandleAsync(ctx context.Context, input string) (<-chan TurnOutcome, error) {
	out := make(chan TurnOutcome, 1)
	err := a.pool.Submit(ctx, func() {
		turn, err := a.Handle(ctx, input)
		out <- TurnOutcome{Turn: turn, Err: err}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TurnOutcome pairs a finished turn with its error.
type TurnOutcome struct {
	Turn *Turn
	Err  error
}

func (a *Assistant) speakTurn(ctx context.Context, turn *Turn) {
	if a.mute || a.speaker == nil || turn.Response == "" {
		return
	}
	spoken, err := a.speaker.Speak(ctx, turn.Response)
	if err != nil {
		a.logger.Warn("voice output failed", "error", err)
		return
	}
	turn.Spoken = spoken
	turn.Cost = budget.Round(turn.Cost + spoken.Cost)
	if spoken.Cost > 0 {
		a.journal(ctx, usage.Entry{
			Service:    spoken.Tier,
			Model:      "standard",
			Operation:  "speak",
			Characters: len(turn.Response),
			Cost:       spoken.Cost,
		})
	}
}

func (a *Assistant) journal(ctx context.Context, e usage.Entry) {
	if err := a.recorder.Record(ctx, e); err != nil {
		a.logger.Warn("usage journal write failed", "error", err)
	}
}

// detectCapability scans the command for routing trigger words.
func detectCapability(input string) (string, bool) {
	lower := strings.ToLower(input)
	for _, kw := range capabilityKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.capability, true
		}
	}
	return "", false
}

// extractExpression pulls the longest arithmetic run out of a spoken
// command, so "calculate 2+2*3 for me" routes just "2+2*3".
func extractExpression(input string) string {
	var best, current strings.Builder
	flush := func() {
		if trimmed := strings.TrimSpace(current.String()); len(trimmed) > best.Len() {
			best.Reset()
			best.WriteString(trimmed)
		}
		current.Reset()
	}
	for _, r := range input {
		if strings.ContainsRune("0123456789+-*/.() ", r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return best.String()
}

// renderCapability turns structured capability data into a sentence.
func renderCapability(capability string, data map[string]interface{}) string {
	switch capability {
	case "time":
		if t, ok := data["time"].(string); ok {
			if d, ok := data["date"].(string); ok {
				return fmt.Sprintf("It is %s on %s.", t, d)
			}
			return fmt.Sprintf("It is %s.", t)
		}
	case "calculator":
		if result, ok := data["result"]; ok {
			if expr, ok := data["expression"].(string); ok {
				return fmt.Sprintf("%s = %v", expr, result)
			}
			return fmt.Sprintf("The answer is %v.", result)
		}
	}

	// Generic rendering for agent-provided payloads.
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, data[k]))
	}
	return strings.Join(parts, ", ")
}

// Status aggregates the health of every subsystem for dashboards.
type Status struct {
	Budget    map[string]budget.ServiceStatus `json:"budget"`
	Providers []llm.ProviderState             `json:"providers"`
	Voice     []map[string]interface{}        `json:"voice,omitempty"`
	Agents    mcp.RouterStatus                `json:"agents"`
}

// Status snapshots every subsystem.
func (a *Assistant) Status() Status {
	s := Status{
		Budget:    a.ledger.Status(),
		Providers: a.orch.ProviderStates(),
		Agents:    a.router.Status(),
	}
	if a.speaker != nil {
		s.Voice = a.speaker.Tiers()
	}
	return s
}

// History exposes the conversation history for the web surface.
func (a *Assistant) History() *llm.History {
	return a.orch.History()
}

// Ledger exposes the budget ledger for the web surface.
func (a *Assistant) Ledger() *budget.Ledger {
	return a.ledger
}

// Router exposes the capability router for the web surface.
func (a *Assistant) Router() *mcp.Router {
	return a.router
}

// Usage exposes the journal for the web surface.
func (a *Assistant) Usage() usage.Recorder {
	return a.recorder
}

// Close drains the pool and closes the collaborators the assistant
// owns outright.
func (a *Assistant) Close() error {
	a.pool.Close()
	var first error
	if err := a.orch.Close(); err != nil {
		first = err
	}
	if a.speaker != nil {
		if err := a.speaker.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := a.recorder.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
