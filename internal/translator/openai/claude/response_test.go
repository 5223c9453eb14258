package claude

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func claudeEventPayload(t *testing.T, event string) gjson.Result {
	t.Helper()
	_, data, ok := strings.Cut(event, "\ndata: ")
	require.True(t, ok, "unexpected frame: %q", event)
	return gjson.Parse(strings.TrimSuffix(data, "\n\n"))
}

func TestConvertOpenAIResponseToClaudeToolBlockStopOrder(t *testing.T) {
	var param any
	var events []string
	for _, chunk := range []string{
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"get_time","arguments":""}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":\"berlin\"}"}},{"index":1,"function":{"arguments":"{}"}}]}}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	} {
		events = append(events, ConvertOpenAIResponseToClaude(
			context.Background(), "claude-sonnet-4-20250514", nil, nil, []byte(chunk), &param)...)
	}

	// Both tool blocks close in block index order ahead of message_delta.
	var stopIndexes []int64
	for _, event := range events {
		if strings.HasPrefix(event, "event: content_block_stop\n") {
			stopIndexes = append(stopIndexes, claudeEventPayload(t, event).Get("index").Int())
		}
	}
	assert.Equal(t, []int64{0, 1}, stopIndexes)

	var messageDelta gjson.Result
	for _, event := range events {
		if strings.HasPrefix(event, "event: message_delta\n") {
			messageDelta = claudeEventPayload(t, event)
		}
	}
	assert.Equal(t, "tool_use", messageDelta.Get("delta.stop_reason").String())
	assert.Equal(t, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n", events[len(events)-1])
}
