package config

import (
	"os"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/flowjudge/internal/llm"
)

const (
	defaultOpenAIModel    = "Qwen/Qwen2.5-7B-Instruct"
	defaultOpenAIBaseURL  = "https://api.siliconflow.cn/v1"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string
	APIToken    string

	Provider        string
	Model           string
	BaseURL         string
	APIKeyOverride  string
	FlowjudgeAPIKey string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	MaxTokens       int
	Timeout         time.Duration
	JSONMode        bool

	ContextWindow int
	Workers       int

	SlackBotToken string
	SlackChannel  string
}

func Load() Config {
	cfg := Config{
		Port:        envInt("FLOWJUDGE_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIToken:    envStr("FLOWJUDGE_API_TOKEN", ""),

		Provider:        envStr("FLOWJUDGE_PROVIDER", llm.ProviderOpenAI),
		Model:           envStr("FLOWJUDGE_MODEL", ""),
		BaseURL:         envStr("FLOWJUDGE_BASE_URL", ""),
		APIKeyOverride:  envStr("API_KEY_OVERRIDE", ""),
		FlowjudgeAPIKey: envStr("FLOWJUDGE_API_KEY", ""),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		MaxTokens:       envInt("FLOWJUDGE_MAX_TOKENS", 1024),
		Timeout:         time.Duration(envInt("FLOWJUDGE_TIMEOUT_SECONDS", 120)) * time.Second,
		JSONMode:        envBool("FLOWJUDGE_JSON_MODE", false),

		ContextWindow: envInt("FLOWJUDGE_CONTEXT_WINDOW", 2),
		Workers:       envInt("FLOWJUDGE_WORKERS", 1),

		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_CHANNEL", ""),
	}

	// Model and endpoint defaults depend on the provider.
	if cfg.Provider == llm.ProviderAnthropic {
		if cfg.Model == "" {
			cfg.Model = defaultAnthropicModel
		}
	} else {
		if cfg.Model == "" {
			cfg.Model = defaultOpenAIModel
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOpenAIBaseURL
		}
	}
	return cfg
}

// ProviderAPIKey picks the credential for the configured provider: an
// explicit override wins, then FLOWJUDGE_API_KEY, then the provider's own key.
func (c Config) ProviderAPIKey() string {
	if c.APIKeyOverride != "" {
		return c.APIKeyOverride
	}
	if c.FlowjudgeAPIKey != "" {
		return c.FlowjudgeAPIKey
	}
	if c.Provider == llm.ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// SlackEnabled reports whether analysis summaries should be posted to Slack.
func (c Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

// LLM returns the provider settings.
func (c Config) LLM() llm.Config {
	return llm.Config{
		Provider:  c.Provider,
		Model:     c.Model,
		BaseURL:   c.BaseURL,
		APIKey:    c.ProviderAPIKey(),
		MaxTokens: c.MaxTokens,
		Timeout:   c.Timeout,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
