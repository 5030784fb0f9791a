package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// Text is the terminal tier: it prints the message instead of speaking
// it. It is always available and never fails, which is what makes the
// cascade total.
type Text struct {
	out io.Writer
}

// NewText creates the text fallback tier. Output defaults to stdout.
func NewText(opts ...Option) *Text {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return &Text{out: out}
}

// Name implements Provider.
func (p *Text) Name() string { return "text" }

// Quality implements Provider.
func (p *Text) Quality() Quality { return QualityFallback }

// Available implements Provider.
func (p *Text) Available() bool { return true }

// Speak writes the message to the configured writer. Write errors are
// swallowed so this tier keeps its always-succeeds guarantee.
func (p *Text) Speak(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	fmt.Fprintf(p.out, "[VOICE UNAVAILABLE] %s\n", text)
	return &Result{
		Characters: len(text),
		Elapsed:    time.Since(start),
	}, nil
}

// Close implements Provider.
func (p *Text) Close() error { return nil }

// Verify Text implements Provider at compile time.
var _ Provider = (*Text)(nil)
