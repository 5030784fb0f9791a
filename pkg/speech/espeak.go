package speech

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Espeak is the offline tier. It shells out to the espeak binary, so it
// works with no network and no credentials, at robot-voice quality.
type Espeak struct {
	binary    string
	config    *Config
	logger    *slog.Logger
	available bool

	// run is swapped in tests to avoid spawning a real process.
	run func(ctx context.Context, binary, text string) error
}

// NewEspeak creates the offline tier. Availability is probed once via
// the PATH lookup.
func NewEspeak(opts ...Option) *Espeak {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	binary, err := exec.LookPath("espeak")

	p := &Espeak{
		binary:    binary,
		config:    cfg,
		logger:    cfg.Logger.With("component", "speech.espeak"),
		available: err == nil,
	}
	p.run = p.exec
	return p
}

// Name implements Provider.
func (p *Espeak) Name() string { return "espeak" }

// Quality implements Provider.
func (p *Espeak) Quality() Quality { return QualityBasic }

// Available implements Provider.
func (p *Espeak) Available() bool { return p.available }

// Speak implements Provider.
func (p *Espeak) Speak(ctx context.Context, text string) (*Result, error) {
	if !p.available {
		return nil, WrapError(p.Name(), ErrTierUnavailable)
	}

	start := time.Now()
	if err := p.run(ctx, p.binary, text); err != nil {
		return nil, WrapError(p.Name(), err)
	}
	return &Result{
		Characters: len(text),
		Elapsed:    time.Since(start),
	}, nil
}

func (p *Espeak) exec(ctx context.Context, binary, text string) error {
	cmd := exec.CommandContext(ctx, binary, "-s", "150", text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("espeak: %w: %s", err, out)
	}
	return nil
}

// Close implements Provider.
func (p *Espeak) Close() error { return nil }

// Verify Espeak implements Provider at compile time.
var _ Provider = (*Espeak)(nil)
