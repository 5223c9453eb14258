package adapter

import (
	"context"
	"net/http"
	"time"

	"github.com/llmgate/llmgate/internal/util"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultClaudeBaseURL = "https://api.anthropic.com/v1"

	anthropicVersion = "2023-06-01"
)

// NewOpenAIAdapter serves openai-custom accounts over the Chat Completions
// wire shape.
func NewOpenAIAdapter(cfg Config, maxRetries int, baseDelay time.Duration) Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	return &restAdapter{
		cfg:        cfg,
		t:          newTransport(cfg, maxRetries, baseDelay, nil),
		chatPath:   "/chat/completions",
		modelsPath: "/models",
		setHeaders: bearerAuth(cfg.APIKey),
	}
}

// NewOpenAIResponsesAdapter serves openai-responses-custom accounts over the
// Responses wire shape.
func NewOpenAIResponsesAdapter(cfg Config, maxRetries int, baseDelay time.Duration) Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	return &restAdapter{
		cfg:        cfg,
		t:          newTransport(cfg, maxRetries, baseDelay, nil),
		chatPath:   "/responses",
		modelsPath: "/models",
		setHeaders: bearerAuth(cfg.APIKey),
	}
}

// NewClaudeAdapter serves claude-custom accounts over the Anthropic Messages
// wire shape.
func NewClaudeAdapter(cfg Config, maxRetries int, baseDelay time.Duration) Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultClaudeBaseURL
	}
	return &restAdapter{
		cfg:        cfg,
		t:          newTransport(cfg, maxRetries, baseDelay, nil),
		chatPath:   "/messages",
		modelsPath: "/models",
		setHeaders: func(h http.Header) {
			h.Set("x-api-key", cfg.APIKey)
			h.Set("anthropic-version", anthropicVersion)
		},
	}
}

// NewClaudeCodeAdapter serves claude-code-custom accounts: the Messages wire
// shape authenticated with an OAuth bearer token instead of an API key.
func NewClaudeCodeAdapter(cfg Config, maxRetries int, baseDelay time.Duration) Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultClaudeBaseURL
	}
	return &restAdapter{
		cfg:        cfg,
		t:          newTransport(cfg, maxRetries, baseDelay, nil),
		chatPath:   "/messages",
		modelsPath: "/models",
		setHeaders: func(h http.Header) {
			h.Set("Authorization", "Bearer "+cfg.APIKey)
			h.Set("anthropic-version", anthropicVersion)
			h.Set("anthropic-beta", "oauth-2025-04-20")
		},
	}
}

func bearerAuth(key string) func(h http.Header) {
	return func(h http.Header) {
		h.Set("Authorization", "Bearer "+key)
	}
}

func newTransport(cfg Config, maxRetries int, baseDelay time.Duration, refresh func(context.Context) error) *transport {
	return &transport{
		client:     util.NewHTTPClient(cfg.ProxyURL, cfg.UseProxy),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		refresh:    refresh,
	}
}
