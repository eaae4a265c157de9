package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI completes prompts against any OpenAI-compatible chat endpoint.
type OpenAI struct {
	model     llms.Model
	maxTokens int
}

// NewOpenAI builds a langchaingo OpenAI model from cfg.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewOpenAIFromModel(model, cfg.MaxTokens), nil
}

// NewOpenAIFromModel wraps any langchaingo model.
func NewOpenAIFromModel(model llms.Model, maxTokens int) *OpenAI {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &OpenAI{model: model, maxTokens: maxTokens}
}

func (o *OpenAI) Complete(ctx context.Context, prompt string, hint *Schema) (string, error) {
	var msgs []llms.MessageContent
	opts := []llms.CallOption{llms.WithMaxTokens(o.maxTokens)}
	if hint != nil {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, jsonSystemPrompt))
		opts = append(opts, llms.WithJSONMode())
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := o.model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", &CompletionError{Provider: ProviderOpenAI, Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", &CompletionError{Provider: ProviderOpenAI, Err: errors.New("no choices in response")}
	}
	return resp.Choices[0].Content, nil
}
