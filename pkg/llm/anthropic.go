package llm

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
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// Anthropic is the secondary-cloud text provider, speaking the Anthropic
// messages API. It bills against the "claude" service in the ledger.
type Anthropic struct {
	baseURL   string
	apiKey    string
	config    *Config
	http      *http.Client
	logger    *slog.Logger
	available bool
}

// NewAnthropic creates the Anthropic provider. A missing API key does not
// fail construction; the provider just reports itself unavailable.
func NewAnthropic(opts ...Option) *Anthropic {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	if len(cfg.Models) == 0 {
		cfg.Models = []string{"claude-3-sonnet", "claude-3-haiku"}
	}

	return &Anthropic{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    cfg.APIKey,
		config:    cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    cfg.Logger.With("component", "llm.anthropic"),
		available: cfg.APIKey != "",
	}
}

// Name implements Provider.
func (c *Anthropic) Name() string { return "claude" }

// Service implements Provider.
func (c *Anthropic) Service() string { return "claude" }

// CostTier implements Provider.
func (c *Anthropic) CostTier() Tier { return TierMid }

// Models implements Provider.
func (c *Anthropic) Models() []string { return c.config.Models }

// Available implements Provider.
func (c *Anthropic) Available() bool { return c.available }

// messagesResponse is the subset of the API response we consume.
type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat generates a completion via the messages API. System messages are
// folded into the top-level system field, as the API requires.
func (c *Anthropic) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if !c.available {
		return nil, WrapError(c.Name(), ErrProviderUnavailable)
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.config.Models[0]
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}

	var system strings.Builder
	conversation := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			system.WriteString(m.Content)
			system.WriteString("\n")
			continue
		}
		conversation = append(conversation, m)
	}

	payload := map[string]interface{}{
		"model":      model,
		"max_tokens": maxTokens,
		"messages":   conversation,
	}
	if s := strings.TrimSpace(system.String()); s != "" {
		payload["system"] = s
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(c.Name(), fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(c.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
			Provider:   c.Name(),
		}
	}

	var result messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(c.Name(), fmt.Errorf("decode response: %w", err))
	}
	if len(result.Content) == 0 {
		return nil, WrapError(c.Name(), fmt.Errorf("empty content returned"))
	}

	return &ChatResponse{
		Content: result.Content[0].Text,
		Model:   model,
		Usage: Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close implements Provider.
func (c *Anthropic) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Verify Anthropic implements Provider at compile time.
var _ Provider = (*Anthropic)(nil)
