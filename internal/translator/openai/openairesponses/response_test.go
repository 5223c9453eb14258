package openairesponses

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func convertChunks(t *testing.T, chunks []string) []string {
	t.Helper()
	var param any
	var events []string
	for _, chunk := range chunks {
		events = append(events, ConvertOpenAIResponseToOpenAIResponses(
			context.Background(), "gpt-5", nil, nil, []byte(chunk), &param)...)
	}
	return events
}

// eventTypes reads the SSE event name off each converted frame.
func eventTypes(events []string) []string {
	types := make([]string, 0, len(events))
	for _, event := range events {
		line, _, _ := strings.Cut(event, "\n")
		types = append(types, strings.TrimPrefix(line, "event: "))
	}
	return types
}

func eventPayload(t *testing.T, event string) gjson.Result {
	t.Helper()
	_, data, ok := strings.Cut(event, "\ndata: ")
	require.True(t, ok, "unexpected frame: %q", event)
	return gjson.Parse(strings.TrimSuffix(data, "\n\n"))
}

func TestConvertOpenAIResponseToOpenAIResponsesFrameOrder(t *testing.T) {
	events := convertChunks(t, []string{
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"role":"assistant","content":""}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
		`[DONE]`,
	})

	require.Equal(t, []string{
		"response.created",
		"response.in_progress",
		"response.output_item.added",
		"response.content_part.added",
		"response.output_text.delta",
		"response.output_text.delta",
		"response.output_text.done",
		"response.content_part.done",
		"response.output_item.done",
		"response.completed",
	}, eventTypes(events))

	partDone := eventPayload(t, events[7])
	assert.Equal(t, "output_text", partDone.Get("part.type").String())
	assert.Equal(t, "Hello", partDone.Get("part.text").String())

	completed := eventPayload(t, events[9])
	assert.Equal(t, "completed", completed.Get("response.status").String())
	assert.Equal(t, "Hello", completed.Get("response.output.0.content.0.text").String())
	assert.Equal(t, int64(3), completed.Get("response.usage.input_tokens").Int())
}

func TestConvertOpenAIResponseToOpenAIResponsesToolCallOrder(t *testing.T) {
	events := convertChunks(t, []string{
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"get_time","arguments":""}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":\"berlin\"}"}},{"index":1,"function":{"arguments":"{}"}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	})

	var doneIDs []string
	for _, event := range events {
		if strings.HasPrefix(event, "event: response.output_item.done\n") {
			doneIDs = append(doneIDs, eventPayload(t, event).Get("item.call_id").String())
		}
	}
	assert.Equal(t, []string{"call_a", "call_b"}, doneIDs)

	completed := eventPayload(t, events[len(events)-1])
	assert.Equal(t, "call_a", completed.Get("response.output.0.call_id").String())
	assert.Equal(t, "call_b", completed.Get("response.output.1.call_id").String())
}
