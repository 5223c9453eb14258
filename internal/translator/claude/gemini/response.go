// Response translation from the Anthropic Messages API back to Gemini
// GenerateContent. Text and thinking deltas stream through immediately;
// tool_use input fragments are buffered per block because a Gemini
// functionCall part carries a complete args object.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/llmgate/llmgate/internal/util"
	"github.com/tidwall/gjson"
)

// claudeToGeminiParams accumulates per-stream conversion state.
type claudeToGeminiParams struct {
	Model string
	// ToolNameByBlock and ToolArgsByBlock buffer tool_use blocks until
	// message_delta delivers the stop reason.
	ToolNameByBlock map[int]string
	ToolArgsByBlock map[int]string
	InputTokens     int64
	OutputTokens    int64
	CachedTokens    int64
	FinishSent      bool
}

// ConvertClaudeResponseToGemini converts Anthropic streaming events into
// Gemini streaming responses.
func ConvertClaudeResponseToGemini(_ context.Context, modelName string, _, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &claudeToGeminiParams{
			Model:           modelName,
			ToolNameByBlock: make(map[int]string),
			ToolArgsByBlock: make(map[int]string),
		}
	}
	state := (*param).(*claudeToGeminiParams)

	if strings.TrimSpace(string(rawJSON)) == "[DONE]" {
		return nil
	}

	root := gjson.ParseBytes(rawJSON)

	switch root.Get("type").String() {
	case "message_start":
		if usage := root.Get("message.usage"); usage.Exists() {
			state.InputTokens = usage.Get("input_tokens").Int()
			state.CachedTokens = usage.Get("cache_read_input_tokens").Int()
		}
		if model := root.Get("message.model"); model.Exists() && model.String() != "" {
			state.Model = model.String()
		}
		return nil

	case "content_block_start":
		if block := root.Get("content_block"); block.Get("type").String() == "tool_use" {
			state.ToolNameByBlock[int(root.Get("index").Int())] = block.Get("name").String()
		}
		return nil

	case "content_block_delta":
		delta := root.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			return []string{state.chunk([]any{map[string]any{"text": delta.Get("text").String()}}, "", false)}
		case "thinking_delta":
			return []string{state.chunk([]any{map[string]any{"text": delta.Get("thinking").String(), "thought": true}}, "", false)}
		case "input_json_delta":
			index := int(root.Get("index").Int())
			state.ToolArgsByBlock[index] += delta.Get("partial_json").String()
		}
		return nil

	case "message_delta":
		if usage := root.Get("usage"); usage.Exists() {
			if output := usage.Get("output_tokens"); output.Exists() {
				state.OutputTokens = output.Int()
			}
			if input := usage.Get("input_tokens"); input.Exists() && input.Int() > 0 {
				state.InputTokens = input.Int()
			}
		}
		return []string{state.finishChunk(root.Get("delta.stop_reason").String())}
	}

	return nil
}

// finishChunk flushes buffered tool calls and emits the terminal candidate
// with finishReason and usageMetadata.
func (p *claudeToGeminiParams) finishChunk(stopReason string) string {
	p.FinishSent = true

	var parts []any
	indexes := make([]int, 0, len(p.ToolNameByBlock))
	for index := range p.ToolNameByBlock {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	for _, index := range indexes {
		argsStr := util.SafeParseToolArgs(p.ToolArgsByBlock[index])
		var args any
		if err := json.Unmarshal([]byte(argsStr), &args); err != nil || args == nil {
			args = map[string]any{}
		}
		parts = append(parts, map[string]any{
			"functionCall": map[string]any{
				"name": p.ToolNameByBlock[index],
				"args": args,
			},
		})
	}
	p.ToolNameByBlock = make(map[int]string)
	p.ToolArgsByBlock = make(map[int]string)

	return p.chunk(parts, mapClaudeStopReasonToGemini(stopReason), true)
}

func (p *claudeToGeminiParams) chunk(parts []any, finishReason string, withUsage bool) string {
	candidate := map[string]any{"index": 0}
	if len(parts) > 0 {
		candidate["content"] = map[string]any{"role": "model", "parts": parts}
	}
	if finishReason != "" {
		candidate["finishReason"] = finishReason
	}
	body := map[string]any{
		"candidates":   []any{candidate},
		"modelVersion": p.Model,
	}
	if withUsage {
		usage := map[string]any{
			"promptTokenCount":     p.InputTokens,
			"candidatesTokenCount": p.OutputTokens,
			"totalTokenCount":      p.InputTokens + p.OutputTokens,
		}
		if p.CachedTokens > 0 {
			usage["cachedContentTokenCount"] = p.CachedTokens
		}
		body["usageMetadata"] = usage
	}
	payload, _ := json.Marshal(body)
	return fmt.Sprintf("data: %s\n\n", payload)
}

// ConvertClaudeResponseToGeminiNonStream converts a complete Anthropic
// message into a Gemini response.
func ConvertClaudeResponseToGeminiNonStream(_ context.Context, modelName string, _, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)

	var parts []any
	root.Get("content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			parts = append(parts, map[string]any{"text": block.Get("text").String()})
		case "thinking":
			parts = append(parts, map[string]any{"text": block.Get("thinking").String(), "thought": true})
		case "tool_use":
			args := map[string]any{}
			if input := block.Get("input"); input.Exists() {
				if parsed, ok := input.Value().(map[string]any); ok {
					args = parsed
				}
			}
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{
					"name": block.Get("name").String(),
					"args": args,
				},
			})
		}
		return true
	})
	if parts == nil {
		parts = []any{}
	}

	model := root.Get("model").String()
	if model == "" {
		model = modelName
	}

	usage := map[string]any{
		"promptTokenCount":     root.Get("usage.input_tokens").Int(),
		"candidatesTokenCount": root.Get("usage.output_tokens").Int(),
		"totalTokenCount":      root.Get("usage.input_tokens").Int() + root.Get("usage.output_tokens").Int(),
	}
	if cached := root.Get("usage.cache_read_input_tokens"); cached.Exists() && cached.Int() > 0 {
		usage["cachedContentTokenCount"] = cached.Int()
	}

	response := map[string]any{
		"candidates": []any{
			map[string]any{
				"index":        0,
				"content":      map[string]any{"role": "model", "parts": parts},
				"finishReason": mapClaudeStopReasonToGemini(root.Get("stop_reason").String()),
			},
		},
		"modelVersion":  model,
		"usageMetadata": usage,
	}

	responseJSON, _ := json.Marshal(response)
	return string(responseJSON)
}

// mapClaudeStopReasonToGemini maps Anthropic stop reasons to Gemini finish
// reasons. tool_use reports STOP, matching Gemini's own wire behavior for
// function calling.
func mapClaudeStopReasonToGemini(reason string) string {
	switch reason {
	case "max_tokens":
		return "MAX_TOKENS"
	default:
		return "STOP"
	}
}
