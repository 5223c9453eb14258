package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestConvertOpenAIRequestToClaudeBasics(t *testing.T) {
	raw := []byte(`{
		"model": "claude-sonnet-4-20250514",
		"messages": [
			{"role": "system", "content": "You are terse."},
			{"role": "user", "content": "Hello"}
		],
		"stop": "END"
	}`)

	out := gjson.ParseBytes(ConvertOpenAIRequestToClaude("claude-sonnet-4-20250514", raw, true))

	assert.Equal(t, "claude-sonnet-4-20250514", out.Get("model").String())
	assert.True(t, out.Get("stream").Bool())
	assert.Equal(t, int64(200000), out.Get("max_tokens").Int())
	assert.Equal(t, "You are terse.", out.Get("system.0.text").String())
	assert.Equal(t, "END", out.Get("stop_sequences.0").String())

	require.Len(t, out.Get("messages").Array(), 1)
	assert.Equal(t, "user", out.Get("messages.0.role").String())
	assert.Equal(t, "Hello", out.Get("messages.0.content.0.text").String())
}

func TestConvertOpenAIRequestToClaudeToolChoice(t *testing.T) {
	cases := []struct {
		name     string
		choice   string
		wantType string
		wantName string
	}{
		{"required becomes any", `"required"`, "any", ""},
		{"none stays none", `"none"`, "none", ""},
		{"auto stays auto", `"auto"`, "auto", ""},
		{"function becomes tool", `{"type":"function","function":{"name":"get_weather"}}`, "tool", "get_weather"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := []byte(`{"messages":[{"role":"user","content":"hi"}],"tool_choice":` + tc.choice + `}`)
			out := gjson.ParseBytes(ConvertOpenAIRequestToClaude("claude-sonnet-4-20250514", raw, false))

			assert.Equal(t, tc.wantType, out.Get("tool_choice.type").String())
			if tc.wantName != "" {
				assert.Equal(t, tc.wantName, out.Get("tool_choice.name").String())
			}
		})
	}
}

func TestConvertOpenAIRequestToClaudeToolRoundTrip(t *testing.T) {
	raw := []byte(`{
		"messages": [
			{"role": "user", "content": "weather in berlin?"},
			{"role": "assistant", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"berlin\"}"}}
			]},
			{"role": "tool", "tool_call_id": "call_1", "content": "{\"temp\": 21}"}
		],
		"tools": [
			{"type": "function", "function": {"name": "get_weather", "description": "d", "parameters": {"type":"object","properties":{"city":{"type":"string"}}}}}
		]
	}`)

	out := gjson.ParseBytes(ConvertOpenAIRequestToClaude("claude-sonnet-4-20250514", raw, false))

	messages := out.Get("messages").Array()
	require.Len(t, messages, 3)

	toolUse := messages[1].Get("content.0")
	assert.Equal(t, "tool_use", toolUse.Get("type").String())
	assert.Equal(t, "call_1", toolUse.Get("id").String())
	assert.Equal(t, "berlin", toolUse.Get("input.city").String())

	result := messages[2].Get("content.0")
	assert.Equal(t, "tool_result", result.Get("type").String())
	assert.Equal(t, "call_1", result.Get("tool_use_id").String())

	tool := out.Get("tools.0")
	assert.Equal(t, "get_weather", tool.Get("name").String())
	assert.Equal(t, "string", tool.Get("input_schema.properties.city.type").String())
}

func TestConvertOpenAIRequestToClaudeReasoningEffort(t *testing.T) {
	raw := []byte(`{"messages":[{"role":"user","content":"hi"}],"reasoning_effort":"medium"}`)
	out := gjson.ParseBytes(ConvertOpenAIRequestToClaude("claude-sonnet-4-20250514", raw, false))

	assert.Equal(t, "enabled", out.Get("thinking.type").String())
	assert.Equal(t, int64(12288), out.Get("thinking.budget_tokens").Int())
}
