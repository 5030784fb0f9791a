// Package llm provides a unified interface for text-generation providers
// and the budget-gated fallback cascade across them.
//
// Each backend (OpenAI, Anthropic, local Ollama, the emergency responder)
// implements the Provider interface. The Orchestrator walks an ordered
// provider chain, consults the budget ledger before every attempt, and
// cascades on failure, terminating in the emergency responder so a request
// always produces some response.
//
// Example usage:
//
//	openai := llm.NewOpenAI(llm.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	orch, _ := llm.NewOrchestrator(ledger, []llm.Provider{openai})
//	defer orch.Close()
//
//	result, _ := orch.Respond(ctx, "what time is it?")
//	fmt.Println(result.Response, result.Source, result.Cost)
package llm

import "context"

// Tier classifies a provider's cost profile.
type Tier string

// Cost tiers, cheapest first.
const (
	TierFree    Tier = "free"
	TierLow     Tier = "low"
	TierMid     Tier = "mid"
	TierPremium Tier = "premium"
)

// Provider is the capability contract every text backend implements.
// Construction probes credentials/connectivity once and caches the result;
// constructors never fail on missing credentials, they just report
// Available() == false and get filtered out by the orchestrator.
type Provider interface {
	// Name identifies the provider in logs and results.
	Name() string

	// Service is the billing key used against the budget ledger.
	Service() string

	// CostTier classifies the provider's cost profile (metadata only).
	CostTier() Tier

	// Models lists the provider's models in preference order.
	Models() []string

	// Available reports the cached credential/connectivity probe result.
	Available() bool

	// Chat generates a response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the conversation, system instruction first.
	Messages []Message

	// Model selects one of the provider's models.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0).
	Temperature float64
}

// ChatResponse from a chat completion.
type ChatResponse struct {
	// Content is the assistant's reply.
	Content string

	// Model actually used for generation.
	Model string

	// Usage tracks token consumption for billing.
	// Zero values mean the provider did not report usage; the caller
	// falls back to the character heuristic.
	Usage Usage

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Usage tracks token consumption for billing and limits.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
