package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/MikeSquared-Agency/flowjudge/internal/anthropic"
)

type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textOf(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	if len(m.Parts) != 1 {
		t.Fatalf("expected one part, got %d", len(m.Parts))
	}
	part, ok := m.Parts[0].(llms.TextContent)
	if !ok {
		t.Fatalf("expected text part, got %T", m.Parts[0])
	}
	return part.Text
}

func TestOpenAI_CompleteWithHint(t *testing.T) {
	model := &fakeModel{reply: `{"ok": true}`}
	c := NewOpenAIFromModel(model, 256)

	got, err := c.Complete(context.Background(), "classify", &Schema{Name: "turn_classification"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"ok": true}` {
		t.Errorf("unexpected reply %q", got)
	}
	if len(model.messages) != 2 {
		t.Fatalf("expected system + human messages, got %d", len(model.messages))
	}
	if model.messages[0].Role != llms.ChatMessageTypeSystem || textOf(t, model.messages[0]) != jsonSystemPrompt {
		t.Errorf("unexpected system message: %+v", model.messages[0])
	}
	if model.messages[1].Role != llms.ChatMessageTypeHuman || textOf(t, model.messages[1]) != "classify" {
		t.Errorf("unexpected human message: %+v", model.messages[1])
	}
	if !model.opts.JSONMode {
		t.Error("expected JSON mode with a schema hint")
	}
	if model.opts.MaxTokens != 256 {
		t.Errorf("expected max tokens 256, got %d", model.opts.MaxTokens)
	}
}

func TestOpenAI_CompleteWithoutHint(t *testing.T) {
	model := &fakeModel{reply: "plain"}
	c := NewOpenAIFromModel(model, 0)

	if _, err := c.Complete(context.Background(), "hello", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(model.messages) != 1 || model.messages[0].Role != llms.ChatMessageTypeHuman {
		t.Fatalf("expected a single human message, got %+v", model.messages)
	}
	if model.opts.JSONMode {
		t.Error("JSON mode should be off without a hint")
	}
	if model.opts.MaxTokens != 1024 {
		t.Errorf("expected default max tokens, got %d", model.opts.MaxTokens)
	}
}

func TestOpenAI_ErrorIsCompletionError(t *testing.T) {
	boom := errors.New("rate limited")
	c := NewOpenAIFromModel(&fakeModel{err: boom}, 0)

	_, err := c.Complete(context.Background(), "hello", nil)
	var ce *CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompletionError, got %v", err)
	}
	if ce.Provider != ProviderOpenAI || !errors.Is(err, boom) {
		t.Errorf("unexpected error %+v", ce)
	}
}

func TestAnthropic_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			System    string `json:"system"`
			MaxTokens int    `json:"max_tokens"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.System != jsonSystemPrompt {
			t.Errorf("expected JSON system prompt, got %q", req.System)
		}
		if req.MaxTokens != 512 {
			t.Errorf("expected max_tokens 512, got %d", req.MaxTokens)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "{}"}},
		})
	}))
	defer server.Close()

	client := anthropic.NewClient("k", "m", 0)
	client.SetBaseURL(server.URL)
	c := NewAnthropicFromClient(client, 512)

	got, err := c.Complete(context.Background(), "classify", &Schema{Name: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "{}" {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestAnthropic_ErrorIsCompletionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := anthropic.NewClient("k", "m", 0)
	client.SetBaseURL(server.URL)

	_, err := NewAnthropicFromClient(client, 0).Complete(context.Background(), "hi", nil)
	var ce *CompletionError
	if !errors.As(err, &ce) || ce.Provider != ProviderAnthropic {
		t.Fatalf("expected anthropic CompletionError, got %v", err)
	}
	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected wrapped 429 APIError, got %v", err)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{Provider: "bard", APIKey: "k"}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
	if _, err := New(Config{Provider: ProviderAnthropic}); err == nil {
		t.Error("expected error for missing anthropic key")
	}
	if _, err := New(Config{Provider: ProviderOpenAI}); err == nil {
		t.Error("expected error for missing openai key")
	}

	c, err := New(Config{Provider: ProviderAnthropic, APIKey: "k", Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*Anthropic); !ok {
		t.Errorf("expected *Anthropic, got %T", c)
	}

	c, err = New(Config{Provider: ProviderOpenAI, APIKey: "k", Model: "m", BaseURL: "http://localhost:1/v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*OpenAI); !ok {
		t.Errorf("expected *OpenAI, got %T", c)
	}
}

func TestCompleterFunc(t *testing.T) {
	var c Completer = CompleterFunc(func(_ context.Context, prompt string, _ *Schema) (string, error) {
		return "echo:" + prompt, nil
	})
	got, _ := c.Complete(context.Background(), "x", nil)
	if got != "echo:x" {
		t.Errorf("got %q", got)
	}
}
