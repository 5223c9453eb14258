package translator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/translator"

	_ "github.com/llmgate/llmgate/internal/translator"
)

func TestNeedConvert(t *testing.T) {
	assert.False(t, translator.NeedConvert(constant.ProtocolOpenAI, constant.ProtocolOpenAI))
	assert.True(t, translator.NeedConvert(constant.ProtocolOpenAI, constant.ProtocolClaude))
	assert.True(t, translator.NeedConvert(constant.ProtocolClaude, constant.ProtocolOpenAIResponses))
	assert.True(t, translator.NeedConvert(constant.ProtocolGemini, constant.ProtocolOpenAIResponses))
}

func TestIdentityFallback(t *testing.T) {
	raw := []byte(`{"model":"gpt-5"}`)
	assert.Equal(t, raw, translator.Request(constant.ProtocolOpenAI, constant.ProtocolOpenAI, "gpt-5", raw, false))

	var param any
	events := translator.Response(constant.ProtocolOpenAI, constant.ProtocolOpenAI, context.Background(), "gpt-5", nil, nil, raw, &param)
	require.Len(t, events, 1)
	assert.Equal(t, string(raw), events[0])
}

func TestEveryOrderedPairRegistered(t *testing.T) {
	protocols := []string{
		constant.ProtocolOpenAI,
		constant.ProtocolOpenAIResponses,
		constant.ProtocolClaude,
		constant.ProtocolGemini,
	}
	for _, from := range protocols {
		for _, to := range protocols {
			if from == to {
				continue
			}
			assert.True(t, translator.NeedConvert(from, to), "%s -> %s", from, to)
		}
	}
}

// Claude to Responses has no direct transform; the conversion chains through
// the Chat Completions dialect.
func TestComposedClaudeToResponsesRequest(t *testing.T) {
	raw := []byte(`{
		"model": "gpt-5",
		"max_tokens": 512,
		"system": "be nice",
		"messages": [{"role": "user", "content": "hello"}]
	}`)

	out := gjson.ParseBytes(translator.Request(constant.ProtocolClaude, constant.ProtocolOpenAIResponses, "gpt-5", raw, false))

	assert.Equal(t, "gpt-5", out.Get("model").String())
	assert.Equal(t, "be nice", out.Get("instructions").String())
	assert.Equal(t, int64(512), out.Get("max_output_tokens").Int())

	input := out.Get("input").Array()
	require.NotEmpty(t, input)
	assert.Equal(t, "user", input[0].Get("role").String())
}

func TestModelListConversion(t *testing.T) {
	geminiList := []byte(`{"models":[{"name":"models/gemini-2.5-pro","displayName":"Gemini 2.5 Pro","inputTokenLimit":1048576}]}`)

	out := gjson.ParseBytes(translator.ModelList(constant.ProtocolOpenAI, constant.ProtocolGemini, geminiList))

	assert.Equal(t, "list", out.Get("object").String())
	assert.Equal(t, "gemini-2.5-pro", out.Get("data.0.id").String())
	assert.Equal(t, "model", out.Get("data.0.object").String())
	assert.Equal(t, "google", out.Get("data.0.owned_by").String())
}
