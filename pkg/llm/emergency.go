package llm

import (
	"context"
	"math/rand"
	"strings"
	"time"
)

// Emergency is the terminal, always-succeeding, zero-cost responder in the
// cascade. It performs local keyword-based intent matching against a static
// response table; it has no failure path and is the recursion's base case.
type Emergency struct {
	now  func() time.Time
	pick func(n int) int
}

// NewEmergency creates the emergency responder.
func NewEmergency() *Emergency {
	return &Emergency{
		now:  time.Now,
		pick: rand.Intn,
	}
}

// fallbackResponses are returned for utterances with no matched intent.
var fallbackResponses = []string{
	"I'm experiencing technical difficulties. My systems are temporarily limited.",
	"My apologies, I'm operating in emergency mode with reduced capabilities.",
	"Systems are currently constrained. I'll provide basic assistance.",
	"Technical limitations detected. Running on backup protocols.",
	"I'm in conservation mode. How may I assist with essential tasks?",
}

// intent groups the keywords that trigger one canned behavior.
type intent struct {
	keywords []string
	respond  func(e *Emergency) string
}

var intents = []intent{
	{
		keywords: []string{"time", "clock", "hour"},
		respond: func(e *Emergency) string {
			return "The current time is " + e.now().Format("3:04 PM") + "."
		},
	},
	{
		keywords: []string{"weather", "temperature"},
		respond: func(e *Emergency) string {
			return "I'm unable to check the weather in emergency mode. Please try again later."
		},
	},
	{
		keywords: []string{"hello", "hi", "hey"},
		respond: func(e *Emergency) string {
			return "Hello. I'm operating in emergency mode with limited capabilities."
		},
	},
	{
		keywords: []string{"thank", "thanks"},
		respond: func(e *Emergency) string {
			return "You're welcome."
		},
	},
	{
		keywords: []string{"goodbye", "bye", "exit"},
		respond: func(e *Emergency) string {
			return "Goodbye. I hope my systems will be fully operational soon."
		},
	},
	{
		keywords: []string{"status", "diagnostic"},
		respond: func(e *Emergency) string {
			return "Core systems responding. External providers are currently unreachable."
		},
	},
}

// Respond returns a canned response for the utterance. Never fails.
func (e *Emergency) Respond(userInput string) string {
	lower := strings.ToLower(userInput)

	for _, in := range intents {
		for _, kw := range in.keywords {
			if strings.Contains(lower, kw) {
				return in.respond(e)
			}
		}
	}

	return fallbackResponses[e.pick(len(fallbackResponses))]
}

// Name implements Provider.
func (e *Emergency) Name() string { return "emergency" }

// Service implements Provider. Emergency responses are never billed.
func (e *Emergency) Service() string { return "emergency" }

// CostTier implements Provider.
func (e *Emergency) CostTier() Tier { return TierFree }

// Models implements Provider.
func (e *Emergency) Models() []string { return []string{"hardcoded"} }

// Available implements Provider. The emergency responder is always available.
func (e *Emergency) Available() bool { return true }

// Chat implements Provider by answering the last user message locally.
func (e *Emergency) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	var input string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			input = req.Messages[i].Content
			break
		}
	}
	return &ChatResponse{
		Content: e.Respond(input),
		Model:   "hardcoded",
	}, nil
}

// Close implements Provider.
func (e *Emergency) Close() error { return nil }

// Verify Emergency implements Provider at compile time.
var _ Provider = (*Emergency)(nil)
