package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/majordomo-ai/majordomo/pkg/budget"
)

// Result is the outcome of one orchestrated turn.
type Result struct {
	// Response is the assistant's reply.
	Response string `json:"response"`

	// Source names the provider that produced the reply.
	Source string `json:"source"`

	// Model is the model that produced the reply.
	Model string `json:"model"`

	// Cost is the actual recorded cost of the call.
	Cost float64 `json:"cost"`

	// ContextCompressed reports whether older turns were dropped to fit
	// the context budget.
	ContextCompressed bool `json:"context_compressed"`

	// Emergency reports that every configured provider failed or was
	// denied and the canned responder answered instead.
	Emergency bool `json:"emergency"`
}

// Orchestrator walks an ordered provider chain for each request,
// budget-gating every attempt and cascading on failure. Provider order is
// the static configuration order; only availability filters it at runtime.
// The chain terminates in the emergency responder, so Respond always
// returns a result.
type Orchestrator struct {
	providers []Provider
	emergency *Emergency
	ledger    *budget.Ledger
	prices    *budget.PriceTable
	history   *History
	logger    *slog.Logger

	maxContextTokens int
	attemptTimeout   time.Duration
	systemPrompt     string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxContextTokens bounds the conversation context per request.
func WithMaxContextTokens(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.maxContextTokens = n }
}

// WithAttemptTimeout bounds each individual provider attempt. A timeout
// cascades exactly as any other provider failure would.
func WithAttemptTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.attemptTimeout = d }
}

// WithSystemPrompt sets the standing instruction prepended to every turn.
func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

// WithPriceTable overrides the default static price table.
func WithPriceTable(t *budget.PriceTable) OrchestratorOption {
	return func(o *Orchestrator) { o.prices = t }
}

// WithOrchestratorLogger sets the structured logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger.With("component", "llm.orchestrator")
	}
}

// NewOrchestrator creates an orchestrator over the given provider chain.
// Order is significant: providers are tried front to back. The emergency
// responder is always appended implicitly as the terminal fallback.
func NewOrchestrator(ledger *budget.Ledger, providers []Provider, opts ...OrchestratorOption) (*Orchestrator, error) {
	if ledger == nil {
		return nil, errors.New("llm: ledger is required")
	}

	o := &Orchestrator{
		providers:        providers,
		emergency:        NewEmergency(),
		ledger:           ledger,
		prices:           budget.DefaultPriceTable(),
		history:          NewHistory(),
		logger:           slog.Default().With("component", "llm.orchestrator"),
		maxContextTokens: 4000,
		attemptTimeout:   15 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// History exposes the conversation memory (for status and explicit reset).
func (o *Orchestrator) History() *History {
	return o.history
}

// ProviderStates describes the chain for status reporting.
func (o *Orchestrator) ProviderStates() []ProviderState {
	states := make([]ProviderState, 0, len(o.providers)+1)
	for _, p := range o.providers {
		states = append(states, ProviderState{
			Name:      p.Name(),
			Available: p.Available(),
			CostTier:  p.CostTier(),
		})
	}
	states = append(states, ProviderState{
		Name:      o.emergency.Name(),
		Available: true,
		CostTier:  TierFree,
	})
	return states
}

// ProviderState is one chain entry in a status report.
type ProviderState struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	CostTier  Tier   `json:"cost_tier"`
}

// Respond runs the full cascade for one user turn. The only error it can
// return is the caller's own context cancellation; every provider-level
// failure is recovered inside, terminating in the emergency responder.
func (o *Orchestrator) Respond(ctx context.Context, userInput string) (*Result, error) {
	// Build the message set: system instruction, compressed context,
	// then the new user input.
	var msgs []Message
	if o.systemPrompt != "" {
		msgs = append(msgs, NewSystemMessage(o.systemPrompt))
	}
	msgs = append(msgs, o.history.Messages()...)

	compressed, didCompress := Compress(msgs, o.maxContextTokens)
	msgs = append(compressed, NewUserMessage(userInput))

	var attemptErrs []error

	for _, p := range o.providers {
		if !p.Available() {
			continue
		}

		for _, model := range p.Models() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			result, err := o.attempt(ctx, p, model, msgs)
			if err == nil {
				result.ContextCompressed = didCompress
				o.history.AppendExchange(userInput, result.Response)
				return result, nil
			}

			if errors.Is(err, budget.ErrExceeded) {
				// Local skip: no network call was made.
				o.logger.Info("budget denied, skipping",
					"provider", p.Name(),
					"model", model,
					"reason", err.Error(),
				)
			} else {
				o.logger.Warn("provider attempt failed, cascading",
					"provider", p.Name(),
					"model", model,
					"error", err,
				)
			}
			attemptErrs = append(attemptErrs, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Every provider failed or was denied; the emergency responder is
	// the base case and never fails.
	o.logger.Warn("all providers exhausted, using emergency responder",
		"attempts", len(attemptErrs),
	)

	response := o.emergency.Respond(userInput)
	o.history.AppendExchange(userInput, response)

	return &Result{
		Response:          response,
		Source:            o.emergency.Name(),
		Model:             "hardcoded",
		Cost:              0,
		ContextCompressed: didCompress,
		Emergency:         true,
	}, nil
}

// attempt runs one budget-gated provider/model attempt. A budget denial
// returns before any network call; a provider failure releases the
// reservation so failed attempts record no cost.
func (o *Orchestrator) attempt(ctx context.Context, p Provider, model string, msgs []Message) (*Result, error) {
	inputTokens := 0
	for _, m := range msgs {
		inputTokens += budget.EstimateTokens(m.Content)
	}
	// Assume the reply is about half the prompt, as the pricing gate
	// needs some output estimate before the call.
	estimate := o.prices.EstimateChat(p.Service(), model, inputTokens, inputTokens/2)

	res, err := o.ledger.Reserve(p.Service(), estimate)
	if err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	resp, err := p.Chat(attemptCtx, &ChatRequest{Messages: msgs, Model: model})
	if err != nil {
		res.Release()
		return nil, err
	}

	usage := resp.Usage
	if usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		usage.PromptTokens = inputTokens
		usage.CompletionTokens = budget.EstimateTokens(resp.Content)
	}
	actual := o.prices.EstimateChat(p.Service(), model, usage.PromptTokens, usage.CompletionTokens)
	res.Commit(actual)

	o.logger.Info("provider succeeded",
		"provider", p.Name(),
		"model", model,
		"cost", actual,
		"latency_ms", resp.LatencyMs,
	)

	return &Result{
		Response: resp.Content,
		Source:   p.Name(),
		Model:    model,
		Cost:     actual,
	}, nil
}

// Close closes all providers in the chain.
func (o *Orchestrator) Close() error {
	var lastErr error
	for _, p := range o.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
