package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const gttsBaseURL = "https://translate.google.com/translate_tts"

// maxGTTSChars is the per-request ceiling of the unofficial endpoint.
// Longer messages are synthesized in sentence-ish chunks.
const maxGTTSChars = 200

// GTTS is the free cloud tier backed by the Google Translate TTS
// endpoint. No credentials, no billing, but quality and reliability are
// below the premium tier.
type GTTS struct {
	baseURL string
	lang    string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewGTTS creates the free cloud tier.
func NewGTTS(opts ...Option) *GTTS {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = gttsBaseURL
	}

	return &GTTS{
		baseURL: baseURL,
		lang:    "en",
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "speech.gtts"),
	}
}

// Name implements Provider.
func (p *GTTS) Name() string { return "gtts" }

// Quality implements Provider.
func (p *GTTS) Quality() Quality { return QualityGood }

// Available implements Provider. The endpoint needs no credentials, so
// availability only means "we are allowed to try".
func (p *GTTS) Available() bool { return true }

// Speak fetches MP3 audio chunk by chunk and feeds each to the player.
func (p *GTTS) Speak(ctx context.Context, text string) (*Result, error) {
	start := time.Now()

	for _, chunk := range splitChunks(text, maxGTTSChars) {
		if err := ctx.Err(); err != nil {
			return nil, WrapError(p.Name(), err)
		}
		audio, err := p.fetch(ctx, chunk)
		if err != nil {
			return nil, err
		}
		if err := p.config.Player(audio); err != nil {
			return nil, WrapError(p.Name(), fmt.Errorf("playback: %w", err))
		}
	}

	return &Result{
		Characters: len(text),
		Elapsed:    time.Since(start),
	}, nil
}

func (p *GTTS) fetch(ctx context.Context, chunk string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", p.lang)
	q.Set("q", chunk)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, WrapError(p.Name(), err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, WrapError(p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, WrapError(p.Name(), fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}

// Close implements Provider.
func (p *GTTS) Close() error {
	p.http.CloseIdleConnections()
	return nil
}

// splitChunks breaks text into pieces no longer than limit, preferring
// to cut at whitespace.
func splitChunks(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], ' ')
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// Verify GTTS implements Provider at compile time.
var _ Provider = (*GTTS)(nil)
