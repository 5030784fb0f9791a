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
	ollamaBaseURL      = "http://localhost:11434"
	ollamaProbeTimeout = 2 * time.Second
)

// Ollama is the local-inference provider. It is free; availability is
// probed once at construction by hitting the local server's tag list.
type Ollama struct {
	baseURL   string
	config    *Config
	http      *http.Client
	logger    *slog.Logger
	available bool
}

// NewOllama creates the Ollama provider, probing connectivity once.
// An unreachable server does not fail construction; the provider just
// reports itself unavailable.
func NewOllama(opts ...Option) *Ollama {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	if len(cfg.Models) == 0 {
		cfg.Models = []string{"llama3", "llama2"}
	}

	c := &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger.With("component", "llm.ollama"),
	}
	c.available = c.probe()
	return c
}

// probe checks whether the local server answers.
func (c *Ollama) probe() bool {
	client := &http.Client{Timeout: ollamaProbeTimeout}
	resp, err := client.Get(c.baseURL + "/api/tags")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Name implements Provider.
func (c *Ollama) Name() string { return "ollama" }

// Service implements Provider. Local inference is never billed.
func (c *Ollama) Service() string { return "ollama" }

// CostTier implements Provider.
func (c *Ollama) CostTier() Tier { return TierFree }

// Models implements Provider.
func (c *Ollama) Models() []string { return c.config.Models }

// Available implements Provider.
func (c *Ollama) Available() bool { return c.available }

// generateResponse is the subset of the API response we consume.
type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Chat generates a completion by flattening the conversation into a
// single prompt for the generate endpoint.
func (c *Ollama) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if !c.available {
		return nil, WrapError(c.Name(), ErrProviderUnavailable)
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.config.Models[0]
	}

	var prompt strings.Builder
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			prompt.WriteString("System: " + m.Content + "\n")
		case RoleUser:
			prompt.WriteString("Human: " + m.Content + "\n")
		case RoleAssistant:
			prompt.WriteString("Assistant: " + m.Content + "\n")
		}
	}
	prompt.WriteString("Assistant: ")

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}

	payload := map[string]interface{}{
		"model":  model,
		"prompt": prompt.String(),
		"stream": false,
		"options": map[string]interface{}{
			"num_predict": maxTokens,
			"temperature": c.config.Temperature,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(c.Name(), fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(c.Name(), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(c.Name(), fmt.Errorf("decode response: %w", err))
	}

	return &ChatResponse{
		Content: strings.TrimSpace(result.Response),
		Model:   model,
		Usage: Usage{
			PromptTokens:     result.PromptEvalCount,
			CompletionTokens: result.EvalCount,
			TotalTokens:      result.PromptEvalCount + result.EvalCount,
		},
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close implements Provider.
func (c *Ollama) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// Verify Ollama implements Provider at compile time.
var _ Provider = (*Ollama)(nil)
