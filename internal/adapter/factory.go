package adapter

import (
	"fmt"
	"sync"
	"time"

	"github.com/llmgate/llmgate/internal/constant"
)

// Factory maps (providerType, uuid) to a cached Adapter instance. Instances
// are stable across requests so OAuth tokens stay in memory between calls.
type Factory struct {
	maxRetries int
	baseDelay  time.Duration
	nearWindow time.Duration

	mu       sync.Mutex
	adapters map[string]Adapter
}

// NewFactory builds a factory with the retry and token-expiry knobs shared
// by every adapter it constructs.
func NewFactory(maxRetries int, baseDelay, nearWindow time.Duration) *Factory {
	return &Factory{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		nearWindow: nearWindow,
		adapters:   make(map[string]Adapter),
	}
}

// Get returns the adapter for the account config, constructing it on first
// use.
func (f *Factory) Get(cfg Config) (Adapter, error) {
	key := cfg.Type + "+" + cfg.UUID

	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.adapters[key]; ok {
		return a, nil
	}

	a, err := f.build(cfg)
	if err != nil {
		return nil, err
	}
	f.adapters[key] = a
	return a, nil
}

func (f *Factory) build(cfg Config) (Adapter, error) {
	switch cfg.Type {
	case constant.OpenAICustom:
		return NewOpenAIAdapter(cfg, f.maxRetries, f.baseDelay), nil
	case constant.OpenAIResponsesCustom:
		return NewOpenAIResponsesAdapter(cfg, f.maxRetries, f.baseDelay), nil
	case constant.ClaudeCustom:
		return NewClaudeAdapter(cfg, f.maxRetries, f.baseDelay), nil
	case constant.ClaudeCodeCustom:
		return NewClaudeCodeAdapter(cfg, f.maxRetries, f.baseDelay), nil
	case constant.GeminiCLIOAuth:
		return NewGeminiAdapter(cfg, f.maxRetries, f.baseDelay, f.nearWindow), nil
	case constant.GeminiAntigravity:
		return NewAntigravityAdapter(cfg, f.maxRetries, f.baseDelay, f.nearWindow), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}
