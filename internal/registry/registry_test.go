package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llmgate/llmgate/internal/constant"
)

func TestTypeSupportsModel(t *testing.T) {
	assert.True(t, TypeSupportsModel(constant.OpenAICustom, "gpt-5"))
	assert.False(t, TypeSupportsModel(constant.OpenAICustom, "claude-sonnet-4-20250514"))

	// Claude Code shares the Claude catalogue.
	assert.True(t, TypeSupportsModel(constant.ClaudeCodeCustom, "claude-sonnet-4-20250514"))

	// Anti-truncation pseudo-models resolve to their base model.
	assert.True(t, TypeSupportsModel(constant.GeminiCLIOAuth, "anti-gemini-2.5-pro"))
	assert.False(t, TypeSupportsModel(constant.GeminiCLIOAuth, "anti-gpt-5"))
}

func TestAntiTruncation(t *testing.T) {
	assert.True(t, IsAntiTruncation("anti-gemini-2.5-pro"))
	assert.False(t, IsAntiTruncation("gemini-2.5-pro"))
	// The prefix only counts over a known Gemini model.
	assert.False(t, IsAntiTruncation("anti-unknown-model"))

	assert.Equal(t, "gemini-2.5-pro", BaseModel("anti-gemini-2.5-pro"))
	assert.Equal(t, "gemini-2.5-pro", BaseModel("gemini-2.5-pro"))
	assert.Equal(t, "anti-unknown-model", BaseModel("anti-unknown-model"))
}

func TestDefaultHealthCheckModel(t *testing.T) {
	assert.Equal(t, "gemini-2.5-flash", DefaultHealthCheckModel(constant.GeminiCLIOAuth))
	assert.Equal(t, "claude-3-5-haiku-20241022", DefaultHealthCheckModel(constant.ClaudeCodeCustom))
	assert.Empty(t, DefaultHealthCheckModel("unknown-type"))
}
