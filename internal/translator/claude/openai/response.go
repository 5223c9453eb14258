// Response translation from the Anthropic Messages API back to OpenAI Chat
// Completions. Streaming events are re-framed as chat.completion.chunk
// payloads; tool argument fragments are forwarded verbatim.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/llmgate/llmgate/internal/util"
	"github.com/tidwall/gjson"
)

// claudeToOpenAIParams accumulates per-stream conversion state.
type claudeToOpenAIParams struct {
	MessageID    string
	Model        string
	Created      int64
	InputTokens  int64
	CachedTokens int64
	// ToolIndexByBlock maps a Claude content block index to the OpenAI
	// tool_calls index it was announced under.
	ToolIndexByBlock map[int]int
	NextToolIndex    int
	FinishReason     string
	DoneSent         bool
}

// ConvertClaudeResponseToOpenAI converts Anthropic streaming events into
// OpenAI chat.completion.chunk payloads. One input event may expand into
// zero, one, or many output chunks.
func ConvertClaudeResponseToOpenAI(_ context.Context, modelName string, _, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &claudeToOpenAIParams{
			Model:            modelName,
			Created:          time.Now().Unix(),
			ToolIndexByBlock: make(map[int]int),
		}
	}
	state := (*param).(*claudeToOpenAIParams)

	raw := strings.TrimSpace(string(rawJSON))
	if raw == "[DONE]" {
		if state.DoneSent {
			return []string{}
		}
		state.DoneSent = true
		return []string{"data: [DONE]\n\n"}
	}

	root := gjson.ParseBytes(rawJSON)
	switch root.Get("type").String() {
	case "message_start":
		state.MessageID = root.Get("message.id").String()
		if model := root.Get("message.model"); model.Exists() {
			state.Model = model.String()
		}
		state.InputTokens = root.Get("message.usage.input_tokens").Int()
		state.CachedTokens = root.Get("message.usage.cache_read_input_tokens").Int()
		return []string{state.chunk(map[string]any{"role": "assistant", "content": ""}, nil, nil)}

	case "content_block_start":
		block := root.Get("content_block")
		if block.Get("type").String() != "tool_use" {
			return []string{}
		}
		blockIndex := int(root.Get("index").Int())
		toolIndex := state.NextToolIndex
		state.NextToolIndex++
		state.ToolIndexByBlock[blockIndex] = toolIndex
		toolCall := map[string]any{
			"index": toolIndex,
			"id":    block.Get("id").String(),
			"type":  "function",
			"function": map[string]any{
				"name":      block.Get("name").String(),
				"arguments": "",
			},
		}
		return []string{state.chunk(map[string]any{"tool_calls": []any{toolCall}}, nil, nil)}

	case "content_block_delta":
		delta := root.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			return []string{state.chunk(map[string]any{"content": delta.Get("text").String()}, nil, nil)}
		case "thinking_delta":
			return []string{state.chunk(map[string]any{"reasoning_content": delta.Get("thinking").String()}, nil, nil)}
		case "input_json_delta":
			blockIndex := int(root.Get("index").Int())
			toolIndex, ok := state.ToolIndexByBlock[blockIndex]
			if !ok {
				return []string{}
			}
			toolCall := map[string]any{
				"index": toolIndex,
				"function": map[string]any{
					"arguments": delta.Get("partial_json").String(),
				},
			}
			return []string{state.chunk(map[string]any{"tool_calls": []any{toolCall}}, nil, nil)}
		}
		return []string{}

	case "message_delta":
		state.FinishReason = mapClaudeStopReasonToOpenAI(root.Get("delta.stop_reason").String())
		outputTokens := root.Get("usage.output_tokens").Int()
		usage := map[string]any{
			"prompt_tokens":     state.InputTokens,
			"completion_tokens": outputTokens,
			"total_tokens":      state.InputTokens + outputTokens,
		}
		if state.CachedTokens > 0 {
			usage["prompt_tokens_details"] = map[string]any{"cached_tokens": state.CachedTokens}
		}
		finish := state.FinishReason
		return []string{state.chunk(map[string]any{}, &finish, usage)}

	case "message_stop":
		state.DoneSent = true
		return []string{"data: [DONE]\n\n"}
	}
	return []string{}
}

func (p *claudeToOpenAIParams) chunk(delta map[string]any, finishReason *string, usage map[string]any) string {
	choice := map[string]any{
		"index": 0,
		"delta": delta,
	}
	if finishReason != nil {
		choice["finish_reason"] = *finishReason
	} else {
		choice["finish_reason"] = nil
	}
	payload := map[string]any{
		"id":      p.MessageID,
		"object":  "chat.completion.chunk",
		"created": p.Created,
		"model":   p.Model,
		"choices": []any{choice},
	}
	if usage != nil {
		payload["usage"] = usage
	}
	chunkJSON, _ := json.Marshal(payload)
	return fmt.Sprintf("data: %s\n\n", chunkJSON)
}

// ConvertClaudeResponseToOpenAINonStream converts a complete Anthropic
// message into an OpenAI chat.completion body.
func ConvertClaudeResponseToOpenAINonStream(_ context.Context, modelName string, _, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)

	message := map[string]any{"role": "assistant"}
	var textParts []string
	var thinkingParts []string
	var toolCalls []any

	root.Get("content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			textParts = append(textParts, block.Get("text").String())
		case "thinking":
			thinkingParts = append(thinkingParts, block.Get("thinking").String())
		case "tool_use":
			args := "{}"
			if input := block.Get("input"); input.Exists() {
				args = util.SafeParseToolArgs(input.Raw)
			}
			toolCalls = append(toolCalls, map[string]any{
				"id":   block.Get("id").String(),
				"type": "function",
				"function": map[string]any{
					"name":      block.Get("name").String(),
					"arguments": args,
				},
			})
		}
		return true
	})

	message["content"] = strings.Join(textParts, "")
	if len(thinkingParts) > 0 {
		message["reasoning_content"] = strings.Join(thinkingParts, "")
	}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
	}

	model := root.Get("model").String()
	if model == "" {
		model = modelName
	}

	inputTokens := root.Get("usage.input_tokens").Int()
	outputTokens := root.Get("usage.output_tokens").Int()
	usage := map[string]any{
		"prompt_tokens":     inputTokens,
		"completion_tokens": outputTokens,
		"total_tokens":      inputTokens + outputTokens,
	}
	if cached := root.Get("usage.cache_read_input_tokens"); cached.Exists() && cached.Int() > 0 {
		usage["prompt_tokens_details"] = map[string]any{"cached_tokens": cached.Int()}
	}

	response := map[string]any{
		"id":      root.Get("id").String(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"message":       message,
				"finish_reason": mapClaudeStopReasonToOpenAI(root.Get("stop_reason").String()),
			},
		},
		"usage": usage,
	}

	responseJSON, _ := json.Marshal(response)
	return string(responseJSON)
}

// mapClaudeStopReasonToOpenAI maps Anthropic stop reasons to OpenAI finish
// reasons. Unknown values default to "stop".
func mapClaudeStopReasonToOpenAI(reason string) string {
	switch reason {
	case "end_turn":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	case "stop_sequence":
		return "stop"
	default:
		return "stop"
	}
}
