// Package config provides configuration management for rulesmith.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/solatis/rulesmith/internal/llm"
	"github.com/solatis/rulesmith/internal/rules"
	"github.com/solatis/rulesmith/internal/schema"
)

// Config is the full rulesmith configuration.
type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	DataDir   string
	DB        DBConfig
	Schema    SchemaConfig
	Validator ValidatorConfig
}

// ServerConfig holds configuration for the gRPC conversation service.
type ServerConfig struct {
	Host               string
	Port               int
	MaxSessions        int
	SessionIdleTimeout time.Duration
}

// LLMConfig selects the model endpoint. APIKey is filled from the
// environment only.
type LLMConfig struct {
	Provider       string
	Model          string
	BaseURL        string
	APIKey         string
	Temperature    float32
	JSONMode       bool
	MaxTokens      int
	RequestTimeout time.Duration
}

// DBConfig locates the audit database. An empty URL uses SQLite under DataDir.
type DBConfig struct {
	URL string
}

// SchemaConfig supplies data sources. Sources wins over CSVDir; with
// neither set the built-in sample sources are used.
type SchemaConfig struct {
	Sources    []schema.Source
	CSVDir     string
	DateFields map[string]string
}

// ValidatorConfig holds "match:field" alias entries in priority order.
// Nil keeps the built-in table.
type ValidatorConfig struct {
	Aliases []string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               50061,
			MaxSessions:        1000,
			SessionIdleTimeout: 30 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:       "groq",
			Temperature:    rules.DefaultTemperature,
			MaxTokens:      2048,
			RequestTimeout: 60 * time.Second,
		},
		DataDir: "./data",
	}
}

// APIKey resolves the model API key from the environment.
// RULESMITH_LLM_API_KEY wins over the provider's conventional variable.
func APIKey(provider string) string {
	if key := strings.TrimSpace(os.Getenv("RULESMITH_LLM_API_KEY")); key != "" {
		return key
	}
	if env, ok := providerKeyEnv[strings.ToLower(provider)]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

var providerKeyEnv = map[string]string{
	"groq":       "GROQ_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
	"together":   "TOGETHER_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// ModelConfig converts the LLM section into a provider config.
func (c *LLMConfig) ModelConfig() llm.Config {
	return llm.Config{
		Provider: c.Provider,
		Model:    c.Model,
		BaseURL:  c.BaseURL,
		APIKey:   c.APIKey,
	}
}

// GeneratorConfig returns the per-call generation settings.
func (c *LLMConfig) GeneratorConfig() rules.GeneratorConfig {
	return rules.GeneratorConfig{
		Temperature: c.Temperature,
		JSONMode:    c.JSONMode,
		MaxTokens:   c.MaxTokens,
	}
}

// Registry builds the schema registry from the configured source.
func (c *SchemaConfig) Registry() (*schema.Registry, error) {
	switch {
	case len(c.Sources) > 0:
		return schema.New(c.Sources)
	case c.CSVDir != "":
		sources, err := schema.LoadCSVHeaders(c.CSVDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load schema from %s: %w", c.CSVDir, err)
		}
		return schema.New(sources)
	default:
		return schema.New(schema.Default())
	}
}

// ParsedAliases returns the validator alias table; nil means the defaults.
func (c *ValidatorConfig) ParsedAliases() ([]rules.Alias, error) {
	if c.Aliases == nil {
		return nil, nil
	}
	return rules.ParseAliases(c.Aliases)
}
