// Package registry holds the static model tables for every provider type:
// which models a type can serve, the default model used for health probes,
// and per-model token limits reported by the quota endpoint.
package registry

import (
	"strings"

	"github.com/llmgate/llmgate/internal/constant"
)

// ModelInfo describes one model a provider type can serve.
type ModelInfo struct {
	// ID is the unique identifier for the model.
	ID string `json:"id"`
	// Object type for the model (typically "model").
	Object string `json:"object"`
	// OwnedBy indicates the organization that owns the model.
	OwnedBy string `json:"owned_by"`
	// DisplayName is the human-readable name for the model.
	DisplayName string `json:"display_name,omitempty"`
	// InputTokenLimit is the maximum input token limit.
	InputTokenLimit int `json:"inputTokenLimit,omitempty"`
	// OutputTokenLimit is the maximum output token limit.
	OutputTokenLimit int `json:"outputTokenLimit,omitempty"`
}

// AntiTruncationPrefix marks a pseudo-model id that enables the automatic
// continuation loop over the underlying Gemini model.
const AntiTruncationPrefix = "anti-"

var defaultHealthCheckModels = map[string]string{
	constant.OpenAICustom:          "gpt-5-minimal",
	constant.OpenAIResponsesCustom: "gpt-5-minimal",
	constant.ClaudeCustom:          "claude-3-5-haiku-20241022",
	constant.ClaudeCodeCustom:      "claude-3-5-haiku-20241022",
	constant.GeminiCLIOAuth:        "gemini-2.5-flash",
	constant.GeminiAntigravity:     "gemini-2.5-flash",
}

var modelsByType = map[string][]*ModelInfo{
	constant.OpenAICustom: {
		{ID: "gpt-5", Object: "model", OwnedBy: "openai", DisplayName: "GPT-5", InputTokenLimit: 272000, OutputTokenLimit: 128000},
		{ID: "gpt-5-minimal", Object: "model", OwnedBy: "openai", DisplayName: "GPT-5 Minimal", InputTokenLimit: 272000, OutputTokenLimit: 128000},
		{ID: "gpt-5-low", Object: "model", OwnedBy: "openai", DisplayName: "GPT-5 Low", InputTokenLimit: 272000, OutputTokenLimit: 128000},
		{ID: "gpt-5-medium", Object: "model", OwnedBy: "openai", DisplayName: "GPT-5 Medium", InputTokenLimit: 272000, OutputTokenLimit: 128000},
		{ID: "gpt-5-high", Object: "model", OwnedBy: "openai", DisplayName: "GPT-5 High", InputTokenLimit: 272000, OutputTokenLimit: 128000},
	},
	constant.OpenAIResponsesCustom: {
		{ID: "gpt-5", Object: "model", OwnedBy: "openai", DisplayName: "GPT-5", InputTokenLimit: 272000, OutputTokenLimit: 128000},
		{ID: "gpt-5-minimal", Object: "model", OwnedBy: "openai", DisplayName: "GPT-5 Minimal", InputTokenLimit: 272000, OutputTokenLimit: 128000},
		{ID: "codex-mini-latest", Object: "model", OwnedBy: "openai", DisplayName: "Codex Mini", InputTokenLimit: 200000, OutputTokenLimit: 100000},
	},
	constant.ClaudeCustom: {
		{ID: "claude-opus-4-1-20250805", Object: "model", OwnedBy: "anthropic", DisplayName: "Claude Opus 4.1", InputTokenLimit: 200000, OutputTokenLimit: 32000},
		{ID: "claude-sonnet-4-20250514", Object: "model", OwnedBy: "anthropic", DisplayName: "Claude Sonnet 4", InputTokenLimit: 200000, OutputTokenLimit: 64000},
		{ID: "claude-3-7-sonnet-20250219", Object: "model", OwnedBy: "anthropic", DisplayName: "Claude Sonnet 3.7", InputTokenLimit: 200000, OutputTokenLimit: 64000},
		{ID: "claude-3-5-sonnet", Object: "model", OwnedBy: "anthropic", DisplayName: "Claude Sonnet 3.5", InputTokenLimit: 200000, OutputTokenLimit: 8192},
		{ID: "claude-3-5-haiku-20241022", Object: "model", OwnedBy: "anthropic", DisplayName: "Claude Haiku 3.5", InputTokenLimit: 200000, OutputTokenLimit: 8192},
	},
	constant.GeminiCLIOAuth: {
		{ID: "gemini-2.5-pro", Object: "model", OwnedBy: "google", DisplayName: "Gemini 2.5 Pro", InputTokenLimit: 1048576, OutputTokenLimit: 65536},
		{ID: "gemini-2.5-flash", Object: "model", OwnedBy: "google", DisplayName: "Gemini 2.5 Flash", InputTokenLimit: 1048576, OutputTokenLimit: 65536},
		{ID: "gemini-2.5-flash-lite", Object: "model", OwnedBy: "google", DisplayName: "Gemini 2.5 Flash Lite", InputTokenLimit: 1048576, OutputTokenLimit: 65536},
	},
}

func init() {
	// Claude Code serves the same catalogue as the plain Claude type, and
	// Antigravity mirrors the code-assist catalogue.
	modelsByType[constant.ClaudeCodeCustom] = modelsByType[constant.ClaudeCustom]
	modelsByType[constant.GeminiAntigravity] = modelsByType[constant.GeminiCLIOAuth]
}

// DefaultHealthCheckModel returns the probe model for a provider type.
func DefaultHealthCheckModel(providerType string) string {
	return defaultHealthCheckModels[providerType]
}

// ModelsForType returns the static model catalogue for a provider type.
func ModelsForType(providerType string) []*ModelInfo {
	return modelsByType[providerType]
}

// TypeSupportsModel reports whether the provider type's catalogue contains
// the model. Anti-truncation pseudo-models resolve to their base Gemini id.
func TypeSupportsModel(providerType, modelID string) bool {
	modelID = BaseModel(modelID)
	for _, info := range modelsByType[providerType] {
		if info.ID == modelID {
			return true
		}
	}
	return false
}

// IsAntiTruncation reports whether the model id carries the anti- prefix
// over a model the Gemini catalogue knows.
func IsAntiTruncation(modelID string) bool {
	if !strings.HasPrefix(modelID, AntiTruncationPrefix) {
		return false
	}
	base := strings.TrimPrefix(modelID, AntiTruncationPrefix)
	for _, info := range modelsByType[constant.GeminiCLIOAuth] {
		if info.ID == base {
			return true
		}
	}
	return false
}

// BaseModel strips the anti-truncation prefix when present and valid.
func BaseModel(modelID string) string {
	if IsAntiTruncation(modelID) {
		return strings.TrimPrefix(modelID, AntiTruncationPrefix)
	}
	return modelID
}
