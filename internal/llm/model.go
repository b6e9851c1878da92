// Package llm is the model-call boundary: one blocking completion per
// request, no retries, no streaming.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Request is a single system+user exchange.
type Request struct {
	System      string
	User        string
	Temperature float32
	// JSONMode asks the provider for a bare JSON object when it supports it.
	JSONMode  bool
	MaxTokens int
}

// Model returns the raw text of one completion.
type Model interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to Model.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Name() string { return "func" }

func (f Func) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

type providerDefaults struct {
	baseURL string
	model   string
}

var openAICompatDefaults = map[string]providerDefaults{
	"groq":       {"https://api.groq.com/openai/v1", "llama3-70b-8192"},
	"openai":     {"https://api.openai.com/v1", "gpt-4o-mini"},
	"deepseek":   {"https://api.deepseek.com/v1", "deepseek-chat"},
	"together":   {"https://api.together.xyz/v1", "meta-llama/Llama-3-70b-chat-hf"},
	"openrouter": {"https://openrouter.ai/api/v1", "meta-llama/llama-3-70b-instruct"},
}

// Providers lists the accepted provider names.
func Providers() []string {
	return []string{"groq", "openai", "deepseek", "together", "openrouter", "anthropic"}
}

// New builds the Model for cfg.Provider.
func New(cfg Config) (Model, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "anthropic" {
		return NewAnthropicProvider(cfg)
	}
	defaults, ok := openAICompatDefaults[name]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	return NewOpenAICompatProvider(OpenAICompatConfig{
		ProviderName: name,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		DefaultURL:   defaults.baseURL,
		DefaultModel: defaults.model,
	})
}
