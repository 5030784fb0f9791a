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

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAI is the primary-cloud text provider, speaking the OpenAI
// chat-completions API.
type OpenAI struct {
	baseURL   string
	apiKey    string
	config    *Config
	http      *http.Client
	logger    *slog.Logger
	available bool
}

// NewOpenAI creates the OpenAI provider. A missing API key does not fail
// construction; the provider just reports itself unavailable.
func NewOpenAI(opts ...Option) *OpenAI {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	models := cfg.Models
	if len(models) == 0 {
		models = []string{"gpt-4", "gpt-3.5-turbo"}
	}
	cfg.Models = models

	return &OpenAI{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    cfg.APIKey,
		config:    cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    cfg.Logger.With("component", "llm.openai"),
		available: cfg.APIKey != "",
	}
}

// Name implements Provider.
func (c *OpenAI) Name() string { return "openai" }

// Service implements Provider.
func (c *OpenAI) Service() string { return "openai" }

// CostTier implements Provider.
func (c *OpenAI) CostTier() Tier { return TierPremium }

// Models implements Provider.
func (c *OpenAI) Models() []string { return c.config.Models }

// Available implements Provider.
func (c *OpenAI) Available() bool { return c.available }

// chatCompletionResponse is the subset of the API response we consume.
type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat generates a chat completion.
func (c *OpenAI) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
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

	payload := map[string]interface{}{
		"model":      model,
		"messages":   req.Messages,
		"max_tokens": maxTokens,
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	} else {
		payload["temperature"] = c.config.Temperature
	}

	resp, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, WrapError(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(c.Name(), fmt.Errorf("decode response: %w", err))
	}
	if len(result.Choices) == 0 {
		return nil, WrapError(c.Name(), fmt.Errorf("no choices returned"))
	}

	return &ChatResponse{
		Content: result.Choices[0].Message.Content,
		Model:   model,
		Usage: Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// post sends a JSON payload to the API.
func (c *OpenAI) post(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.http.Do(req)
}

// parseError converts a non-200 response into an APIError.
func (c *OpenAI) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Provider:   c.Name(),
	}
}

// Close implements Provider.
func (c *OpenAI) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
