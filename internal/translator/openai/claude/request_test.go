package claude

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestConvertClaudeRequestToOpenAIThinking(t *testing.T) {
	raw := []byte(`{
		"model": "gpt-5",
		"max_tokens": 8000,
		"thinking": {"type": "enabled", "budget_tokens": 150},
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	out := gjson.ParseBytes(ConvertClaudeRequestToOpenAI("gpt-5", raw, false))

	assert.Equal(t, "medium", out.Get("reasoning_effort").String())
	assert.Equal(t, int64(8000), out.Get("max_completion_tokens").Int())
	assert.False(t, out.Get("max_tokens").Exists())
}

func TestConvertClaudeRequestToOpenAIThinkingThresholds(t *testing.T) {
	cases := []struct {
		budget int
		want   string
	}{
		{50, "low"},
		{51, "medium"},
		{200, "medium"},
		{201, "high"},
	}
	for _, tc := range cases {
		in := []byte(`{"thinking":{"type":"enabled","budget_tokens":` +
			strconv.Itoa(tc.budget) + `},"messages":[{"role":"user","content":"hi"}]}`)
		out := gjson.ParseBytes(ConvertClaudeRequestToOpenAI("gpt-5", in, false))

		assert.Equal(t, tc.want, out.Get("reasoning_effort").String(), "budget %d", tc.budget)
		assert.Equal(t, ReasoningMaxTokens, out.Get("max_completion_tokens").Int(), "budget %d", tc.budget)
	}
}

func TestConvertClaudeRequestToOpenAIOrphanToolUse(t *testing.T) {
	raw := []byte(`{
		"messages": [
			{"role": "user", "content": "weather?"},
			{"role": "assistant", "content": [
				{"type": "tool_use", "id": "toolu_ok", "name": "get_weather", "input": {"city": "berlin"}},
				{"type": "tool_use", "id": "toolu_orphan", "name": "get_weather", "input": {"city": "paris"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_ok", "content": "21C"}
			]}
		]
	}`)

	out := gjson.ParseBytes(ConvertClaudeRequestToOpenAI("gpt-5", raw, false))
	messages := out.Get("messages").Array()
	require.Len(t, messages, 3)

	toolCalls := messages[1].Get("tool_calls").Array()
	require.Len(t, toolCalls, 1)
	assert.Equal(t, "toolu_ok", toolCalls[0].Get("id").String())

	assert.Equal(t, "tool", messages[2].Get("role").String())
	assert.Equal(t, "toolu_ok", messages[2].Get("tool_call_id").String())
	assert.Equal(t, "21C", messages[2].Get("content").String())
}

func TestConvertClaudeRequestToOpenAIToolChoice(t *testing.T) {
	raw := []byte(`{"messages":[{"role":"user","content":"hi"}],"tool_choice":{"type":"any"}}`)
	out := gjson.ParseBytes(ConvertClaudeRequestToOpenAI("gpt-5", raw, false))
	assert.Equal(t, "required", out.Get("tool_choice").String())

	raw = []byte(`{"messages":[{"role":"user","content":"hi"}],"tool_choice":{"type":"tool","name":"lookup"}}`)
	out = gjson.ParseBytes(ConvertClaudeRequestToOpenAI("gpt-5", raw, false))
	assert.Equal(t, "function", out.Get("tool_choice.type").String())
	assert.Equal(t, "lookup", out.Get("tool_choice.function.name").String())
}
