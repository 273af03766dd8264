package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Client sends one prompt and returns the raw completion text.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ClientFunc func(ctx context.Context, prompt string) (string, error)

func (f ClientFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// New builds the configured client. The "none" provider returns a nil client,
// which callers treat as "LLM extraction unavailable".
func New(ctx context.Context, cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderNone
	}
	if provider != ProviderNone && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm provider %s requires an api key", provider)
	}

	switch provider {
	case ProviderNone:
		return nil, nil
	case ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg.APIKey, modelOrDefault(cfg.Model, DefaultGeminiModel))
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, modelOrDefault(cfg.Model, DefaultOpenAIModel), cfg.BaseURL), nil
	case ProviderClaude:
		return NewClaudeClient(cfg.APIKey, modelOrDefault(cfg.Model, DefaultClaudeModel), cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

func modelOrDefault(model, fallback string) string {
	if trimmed := strings.TrimSpace(model); trimmed != "" {
		return trimmed
	}
	return fallback
}
