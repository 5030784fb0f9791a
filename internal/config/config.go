// Package config provides configuration for the majordomo assistant.
// Configuration is environment-first; an optional YAML file supplies
// budget limits and the remote agent roster.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultBudgetFile     = "budget_data.json"
	DefaultUsageDB        = "usage.db"
	DefaultWebPort        = "8090"
	DefaultMaxContext     = 4000
	DefaultLLMTimeout     = 15 * time.Second
	DefaultHealthInterval = 30 * time.Second
	DefaultWorkers        = 4
)

// Config holds all configuration for the majordomo application.
// Flag parsing is done in cmd/majordomo/main.go; this struct is data only.
type Config struct {
	// Debug enables verbose debug logging.
	Debug bool

	// BudgetFile is the path of the persisted budget ledger.
	BudgetFile string

	// UsageDB is the path of the SQLite usage journal ("" disables it).
	UsageDB string

	// WebPort is the status/control API port.
	WebPort string

	// MaxContextTokens bounds the conversation context passed to providers.
	MaxContextTokens int

	// LLMTimeout bounds each individual provider attempt.
	LLMTimeout time.Duration

	// Workers is the size of the dispatch worker pool.
	Workers int

	// SystemPrompt is the standing instruction prepended to every turn.
	SystemPrompt string

	// API keys (from environment variables).
	OpenAIKey     string
	AnthropicKey  string
	ElevenLabsKey string

	// OllamaHost is the local inference endpoint.
	OllamaHost string

	// ElevenLabsVoice is the premium voice ID.
	ElevenLabsVoice string

	// Limits maps service -> period -> amount, loaded from the roster file.
	Limits map[string]map[string]float64

	// Agents is the remote capability agent roster.
	Agents []AgentConfig
}

// AgentConfig describes one remote capability agent from the roster file.
type AgentConfig struct {
	Name         string   `yaml:"name"`
	Endpoint     string   `yaml:"endpoint"`
	Capabilities []string `yaml:"capabilities"`
	AuthToken    string   `yaml:"auth_token,omitempty"`
	Priority     int      `yaml:"priority"`
}

// rosterFile is the on-disk YAML shape.
type rosterFile struct {
	Limits map[string]map[string]float64 `yaml:"limits"`
	Agents []AgentConfig                 `yaml:"agents"`
}

// Default returns sensible defaults for majordomo configuration.
func Default() Config {
	return Config{
		BudgetFile:       DefaultBudgetFile,
		UsageDB:          DefaultUsageDB,
		WebPort:          DefaultWebPort,
		MaxContextTokens: DefaultMaxContext,
		LLMTimeout:       DefaultLLMTimeout,
		Workers:          DefaultWorkers,
		OllamaHost:       "http://localhost:11434",
	}
}

// LoadEnv loads configuration values from environment variables.
// Call this after flag parsing to apply environment overrides.
// Missing credentials are not an error; the matching provider simply
// reports itself unavailable at initialization.
func (c *Config) LoadEnv() {
	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	c.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	c.ElevenLabsKey = firstEnv("ELEVENLABS_API_KEY", "ELEVEN_API_KEY")

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.OllamaHost = host
	}
	if voice := os.Getenv("ELEVENLABS_VOICE_ID"); voice != "" {
		c.ElevenLabsVoice = voice
	}
	if port := os.Getenv("MAJORDOMO_PORT"); port != "" {
		c.WebPort = port
	}
}

// LoadRoster reads budget limits and the agent roster from a YAML file.
// A missing file is not an error; defaults apply.
func (c *Config) LoadRoster(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read roster: %w", err)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("parse roster: %w", err)
	}

	if rf.Limits != nil {
		c.Limits = rf.Limits
	}
	c.Agents = rf.Agents
	return nil
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
