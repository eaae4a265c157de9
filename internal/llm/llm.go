// Package llm adapts completion providers to the single text-completion
// capability the analysis pipeline consumes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	// jsonSystemPrompt is sent as the system message whenever a schema hint is given.
	jsonSystemPrompt = "You must respond with valid JSON only."
)

// ErrUnknownProvider is returned by New for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Completer turns a prompt into completion text.
type Completer interface {
	Complete(ctx context.Context, prompt string, hint *Schema) (string, error)
}

// Schema hints that the caller expects a structured JSON reply.
type Schema struct {
	Name string
}

// CompletionError wraps any failure of the completion provider.
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s completion: %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
}

// New builds the Completer named by cfg.Provider.
func New(cfg Config) (Completer, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, prompt string, hint *Schema) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, hint *Schema) (string, error) {
	return f(ctx, prompt, hint)
}
