package speech

import (
	"io"
	"log/slog"
	"time"
)

// Config holds tier configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Provider credentials
	APIKey  string
	BaseURL string

	// Voice configuration
	VoiceID string
	ModelID string

	// Timeout bounds each synthesis request.
	Timeout time.Duration

	// Player consumes synthesized audio.
	Player Player

	// Out receives the message for the text fallback tier.
	Out io.Writer

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring tiers.
type Option func(*Config)

// WithAPIKey sets the API key for the tier.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithVoice sets the voice ID.
func WithVoice(voiceID string) Option {
	return func(c *Config) {
		c.VoiceID = voiceID
	}
}

// WithModel sets the model ID.
func WithModel(modelID string) Option {
	return func(c *Config) {
		c.ModelID = modelID
	}
}

// WithTimeout sets the synthesis request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithPlayer sets the audio sink.
func WithPlayer(p Player) Option {
	return func(c *Config) {
		c.Player = p
	}
}

// WithWriter sets the output writer for the text fallback tier.
func WithWriter(w io.Writer) Option {
	return func(c *Config) {
		c.Out = w
	}
}

// WithLogger sets the structured logger for the tier.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		ModelID: "standard",
		Timeout: 10 * time.Second,
		Player:  func([]byte) error { return nil },
		Logger:  slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
