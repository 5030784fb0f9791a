package llm

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
type Mock struct {
	// NameValue is returned by Name and Service.
	NameValue string

	// AvailableValue is returned by Available.
	AvailableValue bool

	// ModelsValue is returned by Models.
	ModelsValue []string

	// TierValue is returned by CostTier.
	TierValue Tier

	// ChatFunc is called when Chat is invoked.
	ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	mu    sync.Mutex
	calls int
}

// NewMock creates an available mock provider that echoes a canned reply.
func NewMock(name string) *Mock {
	return &Mock{
		NameValue:      name,
		AvailableValue: true,
		ModelsValue:    []string{name + "-model"},
		TierValue:      TierLow,
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{
				Content: "Mock response from " + name,
				Model:   name + "-model",
				Usage:   Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			}, nil
		},
	}
}

// WithChatError returns an available mock whose every attempt fails.
func WithChatError(name string, err error) *Mock {
	m := NewMock(name)
	m.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		return nil, err
	}
	return m
}

// Unavailable returns a mock filtered out by the availability check.
func Unavailable(name string) *Mock {
	m := NewMock(name)
	m.AvailableValue = false
	return m
}

// Calls returns how many times Chat was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Name implements Provider.
func (m *Mock) Name() string { return m.NameValue }

// Service implements Provider.
func (m *Mock) Service() string { return m.NameValue }

// CostTier implements Provider.
func (m *Mock) CostTier() Tier { return m.TierValue }

// Models implements Provider.
func (m *Mock) Models() []string { return m.ModelsValue }

// Available implements Provider.
func (m *Mock) Available() bool { return m.AvailableValue }

// Chat calls ChatFunc and counts the invocation.
func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return nil, WrapError(m.NameValue, ErrProviderUnavailable)
}

// Close implements Provider.
func (m *Mock) Close() error { return nil }

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
