package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io/v1"
	defaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM"
	defaultElevenLabsModel = "eleven_monolingual_v1"
)

// ElevenLabs is the premium cloud voice tier. It is the only tier whose
// usage is billed; the cascade gates it through the budget ledger.
type ElevenLabs struct {
	baseURL   string
	apiKey    string
	config    *Config
	http      *http.Client
	logger    *slog.Logger
	available bool
}

// NewElevenLabs creates the premium tier. A missing API key does not fail
// construction; the tier just reports itself unavailable.
func NewElevenLabs(opts ...Option) *ElevenLabs {
	cfg := DefaultConfig()
	cfg.ModelID = defaultElevenLabsModel
	cfg.Apply(opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultElevenLabsVoice
	}

	return &ElevenLabs{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    cfg.APIKey,
		config:    cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    cfg.Logger.With("component", "speech.elevenlabs"),
		available: cfg.APIKey != "",
	}
}

// Name implements Provider.
func (p *ElevenLabs) Name() string { return "elevenlabs" }

// Quality implements Provider.
func (p *ElevenLabs) Quality() Quality { return QualityPremium }

// Available implements Provider.
func (p *ElevenLabs) Available() bool { return p.available }

// Speak synthesizes text and hands the audio to the configured player.
func (p *ElevenLabs) Speak(ctx context.Context, text string) (*Result, error) {
	if !p.available {
		return nil, WrapError(p.Name(), ErrTierUnavailable)
	}

	start := time.Now()

	payload, err := json.Marshal(map[string]interface{}{
		"text":     text,
		"model_id": p.config.ModelID,
	})
	if err != nil {
		return nil, WrapError(p.Name(), fmt.Errorf("encode request: %w", err))
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", p.baseURL, p.config.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, WrapError(p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, WrapError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, WrapError(p.Name(), fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(p.Name(), fmt.Errorf("read audio: %w", err))
	}

	if err := p.config.Player(audio); err != nil {
		return nil, WrapError(p.Name(), fmt.Errorf("playback: %w", err))
	}

	return &Result{
		Characters: len(text),
		Elapsed:    time.Since(start),
	}, nil
}

// Close implements Provider.
func (p *ElevenLabs) Close() error {
	p.http.CloseIdleConnections()
	return nil
}

// Verify ElevenLabs implements Provider at compile time.
var _ Provider = (*ElevenLabs)(nil)
