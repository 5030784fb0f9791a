package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/majordomo-ai/majordomo/pkg/budget"
)

// SpeakResult reports how a message was ultimately delivered.
type SpeakResult struct {
	Tier      string        `json:"tier"`
	Quality   Quality       `json:"quality"`
	Cost      float64       `json:"cost"`
	Fallbacks int           `json:"fallbacks"`
	Elapsed   time.Duration `json:"elapsed_ms"`
}

// Speaker runs the voice cascade: tiers are tried best-first, the
// premium tier is gated by the budget ledger, and the terminal text
// tier guarantees every message is delivered in some form.
type Speaker struct {
	tiers  []Provider
	ledger *budget.Ledger
	prices *budget.PriceTable
	model  string
	logger *slog.Logger
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithSpeakerLogger sets the structured logger.
func WithSpeakerLogger(logger *slog.Logger) SpeakerOption {
	return func(s *Speaker) {
		s.logger = logger.With("component", "speech.speaker")
	}
}

// WithSpeakerPrices overrides the price table used for premium-tier
// estimates.
func WithSpeakerPrices(prices *budget.PriceTable) SpeakerOption {
	return func(s *Speaker) {
		s.prices = prices
	}
}

// WithVoiceModel sets the pricing model name looked up for the premium
// tier.
func WithVoiceModel(model string) SpeakerOption {
	return func(s *Speaker) {
		s.model = model
	}
}

// NewSpeaker builds the cascade over the given tiers, best first. The
// ledger gates only tiers of QualityPremium; everything else is free.
// Callers should place an always-available tier (NewText) last.
func NewSpeaker(ledger *budget.Ledger, tiers []Provider, opts ...SpeakerOption) (*Speaker, error) {
	if ledger == nil {
		return nil, errors.New("speech: ledger is required")
	}
	s := &Speaker{
		tiers:  tiers,
		ledger: ledger,
		prices: budget.DefaultPriceTable(),
		model:  "standard",
		logger: slog.Default().With("component", "speech.speaker"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Speak delivers text through the best tier the budget and the engines
// allow. The error return is non-nil only for empty input or context
// cancellation; engine failures fall through to the next tier.
func (s *Speaker) Speak(ctx context.Context, text string) (*SpeakResult, error) {
	return s.speak(ctx, text, "")
}

// SpeakWith forces a specific tier by name, skipping the cascade. The
// forced tier is still budget-gated if it is premium.
func (s *Speaker) SpeakWith(ctx context.Context, text, tier string) (*SpeakResult, error) {
	if tier == "" {
		return s.speak(ctx, text, "")
	}
	for _, p := range s.tiers {
		if p.Name() == tier {
			return s.speak(ctx, text, tier)
		}
	}
	return nil, WrapError(tier, ErrUnknownTier)
}

func (s *Speaker) speak(ctx context.Context, text, forced string) (*SpeakResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	start := time.Now()
	fallbacks := 0

	for _, tier := range s.tiers {
		if forced != "" && tier.Name() != forced {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !tier.Available() {
			s.logger.Debug("tier unavailable, skipping", "tier", tier.Name())
			fallbacks++
			continue
		}

		cost, ok, err := s.attempt(ctx, tier, text)
		if err == nil && ok {
			return &SpeakResult{
				Tier:      tier.Name(),
				Quality:   tier.Quality(),
				Cost:      cost,
				Fallbacks: fallbacks,
				Elapsed:   time.Since(start),
			}, nil
		}
		if errors.Is(err, budget.ErrExceeded) {
			s.logger.Info("tier over budget, falling back",
				"tier", tier.Name(),
				"reason", err.Error())
		} else if err != nil {
			s.logger.Warn("tier failed, falling back",
				"tier", tier.Name(),
				"error", err)
		}
		fallbacks++
		if forced != "" {
			return nil, err
		}
	}

	if forced != "" {
		return nil, WrapError(forced, ErrTierUnavailable)
	}
	return nil, WrapError("cascade", ErrTierUnavailable)
}

// attempt runs one tier, holding a budget reservation around premium
// synthesis so concurrent speakers cannot jointly overspend.
func (s *Speaker) attempt(ctx context.Context, tier Provider, text string) (float64, bool, error) {
	if tier.Quality() != QualityPremium {
		if _, err := tier.Speak(ctx, text); err != nil {
			return 0, false, err
		}
		return 0, true, nil
	}

	estimate := s.prices.EstimateVoice(tier.Name(), s.model, len(text))
	res, err := s.ledger.Reserve(tier.Name(), estimate)
	if err != nil {
		return 0, false, err
	}

	if _, err := tier.Speak(ctx, text); err != nil {
		res.Release()
		return 0, false, err
	}
	res.Commit(estimate)
	return estimate, true, nil
}

// Tiers reports the configured cascade for status surfaces.
func (s *Speaker) Tiers() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(s.tiers))
	for _, tier := range s.tiers {
		out = append(out, map[string]interface{}{
			"name":      tier.Name(),
			"quality":   tier.Quality(),
			"available": tier.Available(),
		})
	}
	return out
}

// Close closes every tier, returning the first error seen.
func (s *Speaker) Close() error {
	var first error
	for _, tier := range s.tiers {
		if err := tier.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
