package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestConvertOpenAIRequestToGeminiGenerationConfig(t *testing.T) {
	raw := []byte(`{"messages":[{"role":"user","content":"hi"}]}`)
	out := gjson.ParseBytes(ConvertOpenAIRequestToGemini("gemini-2.5-pro", raw, false))

	config := out.Get("generationConfig")
	assert.Equal(t, 1.0, config.Get("temperature").Float())
	assert.Equal(t, 0.95, config.Get("topP").Float())
	assert.Equal(t, int64(65534), config.Get("maxOutputTokens").Int())
}

func TestConvertOpenAIRequestToGeminiMaxTokensCap(t *testing.T) {
	raw := []byte(`{"max_tokens":100000,"messages":[{"role":"user","content":"hi"}]}`)
	out := gjson.ParseBytes(ConvertOpenAIRequestToGemini("gemini-2.5-pro", raw, false))
	assert.Equal(t, int64(65536), out.Get("generationConfig.maxOutputTokens").Int())

	raw = []byte(`{"max_completion_tokens":1024,"messages":[{"role":"user","content":"hi"}]}`)
	out = gjson.ParseBytes(ConvertOpenAIRequestToGemini("gemini-2.5-pro", raw, false))
	assert.Equal(t, int64(1024), out.Get("generationConfig.maxOutputTokens").Int())
}

func TestConvertOpenAIRequestToGeminiToolMessages(t *testing.T) {
	raw := []byte(`{
		"messages": [
			{"role": "system", "content": "be brief"},
			{"role": "user", "content": "weather?"},
			{"role": "assistant", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"berlin\"}"}}
			]},
			{"role": "tool", "tool_call_id": "call_1", "content": "{\"temp\": 21}"}
		]
	}`)

	out := gjson.ParseBytes(ConvertOpenAIRequestToGemini("gemini-2.5-pro", raw, false))

	assert.Equal(t, "be brief", out.Get("systemInstruction.parts.0.text").String())

	contents := out.Get("contents").Array()
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Get("role").String())
	assert.Equal(t, "model", contents[1].Get("role").String())
	assert.Equal(t, "get_weather", contents[1].Get("parts.0.functionCall.name").String())
	assert.Equal(t, "berlin", contents[1].Get("parts.0.functionCall.args.city").String())

	response := contents[2].Get("parts.0.functionResponse")
	assert.Equal(t, "get_weather", response.Get("name").String())
	assert.Equal(t, int64(21), response.Get("response.temp").Int())
}

func TestConvertOpenAIRequestToGeminiToolSchemaSanitized(t *testing.T) {
	raw := []byte(`{
		"messages": [{"role": "user", "content": "hi"}],
		"tools": [{"type": "function", "function": {
			"name": "lookup",
			"parameters": {
				"type": "object",
				"additionalProperties": false,
				"$schema": "http://json-schema.org/draft-07/schema#",
				"properties": {"q": {"type": "string", "format": "uri"}}
			}
		}}],
		"tool_choice": "required"
	}`)

	out := gjson.ParseBytes(ConvertOpenAIRequestToGemini("gemini-2.5-pro", raw, false))

	params := out.Get("tools.0.functionDeclarations.0.parameters")
	assert.Equal(t, "object", params.Get("type").String())
	assert.False(t, params.Get("additionalProperties").Exists())
	assert.False(t, params.Get("$schema").Exists())
	assert.Equal(t, "string", params.Get("properties.q.type").String())
	assert.False(t, params.Get("properties.q.format").Exists())

	assert.Equal(t, "ANY", out.Get("toolConfig.functionCallingConfig.mode").String())
}
