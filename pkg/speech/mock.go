package speech

import (
	"context"
	"sync"
	"time"
)

// Mock is a configurable test double for the Provider interface.
type Mock struct {
	NameValue      string
	QualityValue   Quality
	AvailableValue bool
	SpeakFunc      func(ctx context.Context, text string) (*Result, error)

	mu    sync.Mutex
	calls []string
}

// NewMock creates a mock tier that succeeds with sensible defaults.
func NewMock(name string) *Mock {
	return &Mock{
		NameValue:      name,
		QualityValue:   QualityGood,
		AvailableValue: true,
		SpeakFunc: func(ctx context.Context, text string) (*Result, error) {
			return &Result{Characters: len(text), Elapsed: time.Millisecond}, nil
		},
	}
}

// WithSpeakError returns a mock whose Speak always fails.
func WithSpeakError(name string, err error) *Mock {
	m := NewMock(name)
	m.SpeakFunc = func(ctx context.Context, text string) (*Result, error) {
		return nil, WrapError(name, err)
	}
	return m
}

// Unavailable returns a mock that reports itself unavailable.
func Unavailable(name string) *Mock {
	m := NewMock(name)
	m.AvailableValue = false
	return m
}

// Name implements Provider.
func (m *Mock) Name() string { return m.NameValue }

// Quality implements Provider.
func (m *Mock) Quality() Quality { return m.QualityValue }

// Available implements Provider.
func (m *Mock) Available() bool { return m.AvailableValue }

// Speak implements Provider, recording the call.
func (m *Mock) Speak(ctx context.Context, text string) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	return m.SpeakFunc(ctx, text)
}

// Close implements Provider.
func (m *Mock) Close() error { return nil }

// Calls returns the texts passed to Speak, in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
