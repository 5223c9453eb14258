// Response translation from OpenAI Chat Completions back to the Anthropic
// Messages API. The Claude wire protocol requires frame events around the
// content stream (message_start, content_block_start/delta/stop,
// message_delta, message_stop); frames are synthesized from the first chunk
// carrying a role and the chunk carrying the terminal finish_reason.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/llmgate/llmgate/internal/util"
	"github.com/tidwall/gjson"
)

// openAIToClaudeParams accumulates per-stream conversion state.
type openAIToClaudeParams struct {
	MessageID string
	Model     string
	// NextBlockIndex numbers Claude content blocks as they open.
	NextBlockIndex int
	// TextBlockIndex is the open text block, -1 when none.
	TextBlockIndex int
	// ThinkingBlockIndex is the open thinking block, -1 when none.
	ThinkingBlockIndex int
	// ToolBlockByIndex maps an OpenAI tool_calls index to its Claude block.
	ToolBlockByIndex map[int]int
	FinishReason     string
	MessageDeltaSent bool
	PromptTokens     int64
	CompletionTokens int64
	CachedTokens     int64
}

// ConvertOpenAIResponseToClaude converts OpenAI streaming chunks into
// Anthropic streaming events, synthesizing frame events as needed.
func ConvertOpenAIResponseToClaude(_ context.Context, modelName string, _, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &openAIToClaudeParams{
			Model:              modelName,
			TextBlockIndex:     -1,
			ThinkingBlockIndex: -1,
			ToolBlockByIndex:   make(map[int]int),
		}
	}
	state := (*param).(*openAIToClaudeParams)

	raw := strings.TrimSpace(string(rawJSON))
	if raw == "[DONE]" {
		return state.finishEvents(true)
	}

	root := gjson.ParseBytes(rawJSON)
	var events []string

	if state.MessageID == "" {
		if id := root.Get("id"); id.Exists() {
			state.MessageID = id.String()
		}
	}
	if model := root.Get("model"); model.Exists() && model.String() != "" {
		state.Model = model.String()
	}

	delta := root.Get("choices.0.delta")
	if role := delta.Get("role"); role.Exists() && role.String() == "assistant" {
		events = append(events, state.event("message_start", map[string]any{
			"message": map[string]any{
				"id":            state.MessageID,
				"type":          "message",
				"role":          "assistant",
				"model":         state.Model,
				"content":       []any{},
				"stop_reason":   nil,
				"stop_sequence": nil,
				"usage":         map[string]any{"input_tokens": 0, "output_tokens": 0},
			},
		}))
	}

	if reasoning := delta.Get("reasoning_content"); reasoning.Exists() && reasoning.String() != "" {
		if state.ThinkingBlockIndex < 0 {
			state.ThinkingBlockIndex = state.NextBlockIndex
			state.NextBlockIndex++
			events = append(events, state.event("content_block_start", map[string]any{
				"index":         state.ThinkingBlockIndex,
				"content_block": map[string]any{"type": "thinking", "thinking": ""},
			}))
		}
		events = append(events, state.event("content_block_delta", map[string]any{
			"index": state.ThinkingBlockIndex,
			"delta": map[string]any{"type": "thinking_delta", "thinking": reasoning.String()},
		}))
	}

	if content := delta.Get("content"); content.Exists() && content.String() != "" {
		if state.ThinkingBlockIndex >= 0 {
			events = append(events, state.event("content_block_stop", map[string]any{"index": state.ThinkingBlockIndex}))
			state.ThinkingBlockIndex = -1
		}
		if state.TextBlockIndex < 0 {
			state.TextBlockIndex = state.NextBlockIndex
			state.NextBlockIndex++
			events = append(events, state.event("content_block_start", map[string]any{
				"index":         state.TextBlockIndex,
				"content_block": map[string]any{"type": "text", "text": ""},
			}))
		}
		events = append(events, state.event("content_block_delta", map[string]any{
			"index": state.TextBlockIndex,
			"delta": map[string]any{"type": "text_delta", "text": content.String()},
		}))
	}

	delta.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
		openAIIndex := int(toolCall.Get("index").Int())

		if name := toolCall.Get("function.name"); name.Exists() && name.String() != "" {
			if state.TextBlockIndex >= 0 {
				events = append(events, state.event("content_block_stop", map[string]any{"index": state.TextBlockIndex}))
				state.TextBlockIndex = -1
			}
			blockIndex := state.NextBlockIndex
			state.NextBlockIndex++
			state.ToolBlockByIndex[openAIIndex] = blockIndex
			events = append(events, state.event("content_block_start", map[string]any{
				"index": blockIndex,
				"content_block": map[string]any{
					"type":  "tool_use",
					"id":    toolCall.Get("id").String(),
					"name":  name.String(),
					"input": map[string]any{},
				},
			}))
		}

		// Argument fragments are forwarded verbatim as partial_json.
		if args := toolCall.Get("function.arguments"); args.Exists() && args.String() != "" {
			if blockIndex, ok := state.ToolBlockByIndex[openAIIndex]; ok {
				events = append(events, state.event("content_block_delta", map[string]any{
					"index": blockIndex,
					"delta": map[string]any{"type": "input_json_delta", "partial_json": args.String()},
				}))
			}
		}
		return true
	})

	if usage := root.Get("usage"); usage.Exists() && usage.Type != gjson.Null {
		if prompt := usage.Get("prompt_tokens"); prompt.Exists() {
			state.PromptTokens = prompt.Int()
		}
		if completion := usage.Get("completion_tokens"); completion.Exists() {
			state.CompletionTokens = completion.Int()
		}
		if cached := usage.Get("prompt_tokens_details.cached_tokens"); cached.Exists() {
			state.CachedTokens = cached.Int()
		}
	}

	if finishReason := root.Get("choices.0.finish_reason"); finishReason.Exists() && finishReason.String() != "" {
		state.FinishReason = finishReason.String()
		events = append(events, state.finishEvents(false)...)
	}

	return events
}

// finishEvents closes open blocks and emits message_delta; message_stop is
// only appended on the terminal [DONE] marker.
func (p *openAIToClaudeParams) finishEvents(terminal bool) []string {
	var events []string

	if p.ThinkingBlockIndex >= 0 {
		events = append(events, p.event("content_block_stop", map[string]any{"index": p.ThinkingBlockIndex}))
		p.ThinkingBlockIndex = -1
	}
	if p.TextBlockIndex >= 0 {
		events = append(events, p.event("content_block_stop", map[string]any{"index": p.TextBlockIndex}))
		p.TextBlockIndex = -1
	}
	// Tool blocks close in block index order so replayed streams are stable.
	toolBlocks := make([]int, 0, len(p.ToolBlockByIndex))
	for _, blockIndex := range p.ToolBlockByIndex {
		toolBlocks = append(toolBlocks, blockIndex)
	}
	sort.Ints(toolBlocks)
	for _, blockIndex := range toolBlocks {
		events = append(events, p.event("content_block_stop", map[string]any{"index": blockIndex}))
	}
	p.ToolBlockByIndex = make(map[int]int)

	if !p.MessageDeltaSent && p.FinishReason != "" {
		usage := map[string]any{
			"input_tokens":  p.PromptTokens,
			"output_tokens": p.CompletionTokens,
		}
		if p.CachedTokens > 0 {
			usage["cache_read_input_tokens"] = p.CachedTokens
		}
		events = append(events, p.event("message_delta", map[string]any{
			"delta": map[string]any{
				"stop_reason":   mapOpenAIFinishReasonToClaude(p.FinishReason),
				"stop_sequence": nil,
			},
			"usage": usage,
		}))
		p.MessageDeltaSent = true
	}

	if terminal {
		events = append(events, p.event("message_stop", map[string]any{}))
	}
	return events
}

func (p *openAIToClaudeParams) event(eventType string, body map[string]any) string {
	body["type"] = eventType
	payload, _ := json.Marshal(body)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload)
}

// ConvertOpenAIResponseToClaudeNonStream converts a complete OpenAI
// chat.completion body into an Anthropic message.
func ConvertOpenAIResponseToClaudeNonStream(_ context.Context, modelName string, _, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)

	var contentBlocks []any
	message := root.Get("choices.0.message")

	if reasoning := message.Get("reasoning_content"); reasoning.Exists() && reasoning.String() != "" {
		contentBlocks = append(contentBlocks, map[string]any{"type": "thinking", "thinking": reasoning.String()})
	}
	if content := message.Get("content"); content.Exists() && content.String() != "" {
		contentBlocks = append(contentBlocks, map[string]any{"type": "text", "text": content.String()})
	}
	message.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
		argsStr := util.SafeParseToolArgs(toolCall.Get("function.arguments").String())
		var args any
		if err := json.Unmarshal([]byte(argsStr), &args); err != nil || args == nil {
			args = map[string]any{}
		}
		contentBlocks = append(contentBlocks, map[string]any{
			"type":  "tool_use",
			"id":    toolCall.Get("id").String(),
			"name":  toolCall.Get("function.name").String(),
			"input": args,
		})
		return true
	})
	if contentBlocks == nil {
		contentBlocks = []any{}
	}

	model := root.Get("model").String()
	if model == "" {
		model = modelName
	}

	usage := map[string]any{
		"input_tokens":  root.Get("usage.prompt_tokens").Int(),
		"output_tokens": root.Get("usage.completion_tokens").Int(),
	}
	if cached := root.Get("usage.prompt_tokens_details.cached_tokens"); cached.Exists() && cached.Int() > 0 {
		usage["cache_read_input_tokens"] = cached.Int()
	}

	response := map[string]any{
		"id":            root.Get("id").String(),
		"type":          "message",
		"role":          "assistant",
		"model":         model,
		"content":       contentBlocks,
		"stop_reason":   mapOpenAIFinishReasonToClaude(root.Get("choices.0.finish_reason").String()),
		"stop_sequence": nil,
		"usage":         usage,
	}

	responseJSON, _ := json.Marshal(response)
	return string(responseJSON)
}

// mapOpenAIFinishReasonToClaude maps OpenAI finish reasons to Anthropic stop
// reasons. Unknown values default to "end_turn".
func mapOpenAIFinishReasonToClaude(reason string) string {
	switch reason {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	case "tool_calls", "function_call":
		return "tool_use"
	case "content_filter":
		return "stop_sequence"
	default:
		return "end_turn"
	}
}
