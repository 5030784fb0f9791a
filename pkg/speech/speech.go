// Package speech provides a unified interface for text-to-speech tiers
// and the budget-gated cascade across them.
//
// Tiers are ordered by quality: ElevenLabs (premium, character-priced),
// a free cloud tier, an offline engine, and a text fallback that prints
// the message instead of speaking it. Only the premium tier consults the
// budget ledger; the last tier always succeeds, so a message is never
// lost entirely.
//
// The engines themselves are treated as opaque collaborators behind the
// Speak contract; this package owns only tier selection, budget gating
// and fallback.
package speech

import (
	"context"
	"time"
)

// Quality classifies a tier's output quality.
type Quality string

// Tier qualities, best first.
const (
	QualityPremium  Quality = "premium"
	QualityGood     Quality = "good"
	QualityBasic    Quality = "basic"
	QualityFallback Quality = "fallback"
)

// Provider is the capability contract every voice tier implements.
// Construction probes credentials/engine presence once and caches the
// result; constructors never fail, they just report Available() == false.
type Provider interface {
	// Name identifies the tier.
	Name() string

	// Quality classifies the tier's output.
	Quality() Quality

	// Available reports the cached probe result.
	Available() bool

	// Speak synthesizes and plays the text, returning the outcome.
	Speak(ctx context.Context, text string) (*Result, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Result is the outcome of one synthesis call.
type Result struct {
	// Characters is the number of characters synthesized.
	Characters int

	// Elapsed is the synthesis plus playback time.
	Elapsed time.Duration
}

// Player consumes synthesized audio. Playback hardware is outside this
// package; the default player discards the audio.
type Player func(audio []byte) error
