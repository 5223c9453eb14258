package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMapGeminiFinishReasonToOpenAI(t *testing.T) {
	cases := []struct {
		reason       string
		hasToolCalls bool
		want         string
	}{
		{"STOP", false, "stop"},
		{"MAX_TOKENS", false, "length"},
		{"SAFETY", false, "content_filter"},
		{"RECITATION", false, "content_filter"},
		{"PROHIBITED_CONTENT", false, "content_filter"},
		{"BLOCKLIST", false, "content_filter"},
		{"SOMETHING_NEW", false, "stop"},
		{"STOP", true, "tool_calls"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mapGeminiFinishReasonToOpenAI(tc.reason, tc.hasToolCalls),
			"reason=%s toolCalls=%t", tc.reason, tc.hasToolCalls)
	}
}

func TestConvertGeminiResponseToOpenAIStream(t *testing.T) {
	var param any

	// First chunk carries the role preamble plus the text delta.
	first := []byte(`{"response":{"modelVersion":"gemini-2.5-pro","candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}]}}`)
	events := ConvertGeminiResponseToOpenAI(context.Background(), "gemini-2.5-pro", nil, nil, first, &param)
	require.Len(t, events, 2)

	role := gjson.Parse(eventData(t, events[0]))
	assert.Equal(t, "chat.completion.chunk", role.Get("object").String())
	assert.Equal(t, "assistant", role.Get("choices.0.delta.role").String())
	firstID := role.Get("id").String()
	assert.NotEmpty(t, firstID)

	text := gjson.Parse(eventData(t, events[1]))
	assert.Equal(t, "Hel", text.Get("choices.0.delta.content").String())

	// Terminal chunk: the text delta, then the finish chunk with usage.
	second := []byte(`{"response":{"candidates":[{"content":{"parts":[{"text":"lo"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":2,"totalTokenCount":5}}}`)
	events = ConvertGeminiResponseToOpenAI(context.Background(), "gemini-2.5-pro", nil, nil, second, &param)
	require.Len(t, events, 2)

	finish := gjson.Parse(eventData(t, events[1]))
	assert.Equal(t, firstID, finish.Get("id").String())
	assert.Equal(t, "stop", finish.Get("choices.0.finish_reason").String())
	assert.Equal(t, int64(3), finish.Get("usage.prompt_tokens").Int())

	// Upstream end of stream becomes the OpenAI sentinel.
	done := ConvertGeminiResponseToOpenAI(context.Background(), "gemini-2.5-pro", nil, nil, []byte("[DONE]"), &param)
	require.Len(t, done, 1)
	assert.Equal(t, "data: [DONE]\n\n", done[0])
}

func TestConvertGeminiResponseToOpenAINonStreamToolCall(t *testing.T) {
	raw := []byte(`{"candidates":[{"content":{"parts":[{"functionCall":{"name":"get_weather","args":{"city":"berlin"}}}]},"finishReason":"STOP"}]}`)

	var param any
	out := gjson.Parse(ConvertGeminiResponseToOpenAINonStream(context.Background(), "gemini-2.5-pro", nil, nil, raw, &param))

	assert.Equal(t, "chat.completion", out.Get("object").String())
	assert.Equal(t, "tool_calls", out.Get("choices.0.finish_reason").String())

	toolCall := out.Get("choices.0.message.tool_calls.0")
	assert.Equal(t, "get_weather", toolCall.Get("function.name").String())
	assert.Equal(t, "berlin", gjson.Parse(toolCall.Get("function.arguments").String()).Get("city").String())
}

// eventData strips the SSE frame from a converted stream event.
func eventData(t *testing.T, event string) string {
	t.Helper()
	require.True(t, len(event) > 6 && event[:6] == "data: ", "unexpected frame: %q", event)
	return event[6 : len(event)-2]
}
