package llm

import (
	"context"
	"errors"

	"github.com/MikeSquared-Agency/flowjudge/internal/anthropic"
)

// Anthropic completes prompts through the Messages API.
type Anthropic struct {
	client    *anthropic.Client
	maxTokens int
}

// NewAnthropic returns an Anthropic completer. An API key is required.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	client := anthropic.NewClient(cfg.APIKey, cfg.Model, cfg.Timeout)
	if cfg.BaseURL != "" {
		client.SetBaseURL(cfg.BaseURL)
	}
	return NewAnthropicFromClient(client, cfg.MaxTokens), nil
}

// NewAnthropicFromClient wraps an existing client.
func NewAnthropicFromClient(client *anthropic.Client, maxTokens int) *Anthropic {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{client: client, maxTokens: maxTokens}
}

func (a *Anthropic) Complete(ctx context.Context, prompt string, hint *Schema) (string, error) {
	var system string
	if hint != nil {
		system = jsonSystemPrompt
	}
	text, err := a.client.Complete(ctx, system, []anthropic.Message{{Role: "user", Content: prompt}}, a.maxTokens)
	if err != nil {
		return "", &CompletionError{Provider: ProviderAnthropic, Err: err}
	}
	return text, nil
}
