// Response translation from OpenAI Chat Completions back to Gemini
// GenerateContent. Text deltas stream through immediately; tool call
// argument fragments are buffered per index because a Gemini functionCall
// part carries a complete args object.
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

// openAIToGeminiParams accumulates per-stream conversion state.
type openAIToGeminiParams struct {
	Model string
	// ToolNameByIndex and ToolArgsByIndex buffer tool_calls fragments until
	// the terminal chunk.
	ToolNameByIndex map[int]string
	ToolArgsByIndex map[int]string
	FinishReason    string
	Usage           map[string]any
	FinishSent      bool
}

// ConvertOpenAIResponseToGemini converts OpenAI streaming chunks into Gemini
// streaming responses.
func ConvertOpenAIResponseToGemini(_ context.Context, modelName string, _, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &openAIToGeminiParams{
			Model:           modelName,
			ToolNameByIndex: make(map[int]string),
			ToolArgsByIndex: make(map[int]string),
		}
	}
	state := (*param).(*openAIToGeminiParams)

	if strings.TrimSpace(string(rawJSON)) == "[DONE]" {
		if state.FinishSent {
			return nil
		}
		return []string{state.finishChunk()}
	}

	root := gjson.ParseBytes(rawJSON)
	if model := root.Get("model"); model.Exists() && model.String() != "" {
		state.Model = model.String()
	}

	var chunks []string
	delta := root.Get("choices.0.delta")

	if content := delta.Get("content"); content.Exists() && content.String() != "" {
		chunks = append(chunks, state.chunk([]any{map[string]any{"text": content.String()}}, "", nil))
	}
	if reasoning := delta.Get("reasoning_content"); reasoning.Exists() && reasoning.String() != "" {
		chunks = append(chunks, state.chunk([]any{map[string]any{"text": reasoning.String(), "thought": true}}, "", nil))
	}

	delta.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
		index := int(toolCall.Get("index").Int())
		if name := toolCall.Get("function.name"); name.Exists() && name.String() != "" {
			state.ToolNameByIndex[index] = name.String()
		}
		if args := toolCall.Get("function.arguments"); args.Exists() {
			state.ToolArgsByIndex[index] += args.String()
		}
		return true
	})

	if usage := root.Get("usage"); usage.Exists() && usage.Type != gjson.Null {
		state.Usage = map[string]any{
			"promptTokenCount":     usage.Get("prompt_tokens").Int(),
			"candidatesTokenCount": usage.Get("completion_tokens").Int(),
			"totalTokenCount":      usage.Get("total_tokens").Int(),
		}
		if cached := usage.Get("prompt_tokens_details.cached_tokens"); cached.Exists() && cached.Int() > 0 {
			state.Usage["cachedContentTokenCount"] = cached.Int()
		}
	}

	if finishReason := root.Get("choices.0.finish_reason"); finishReason.Exists() && finishReason.String() != "" {
		state.FinishReason = finishReason.String()
		chunks = append(chunks, state.finishChunk())
	}

	return chunks
}

// finishChunk flushes buffered tool calls and emits the terminal candidate
// with finishReason and usageMetadata.
func (p *openAIToGeminiParams) finishChunk() string {
	p.FinishSent = true

	var parts []any
	indexes := make([]int, 0, len(p.ToolNameByIndex))
	for index := range p.ToolNameByIndex {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)
	for _, index := range indexes {
		argsStr := util.SafeParseToolArgs(p.ToolArgsByIndex[index])
		var args any
		if err := json.Unmarshal([]byte(argsStr), &args); err != nil || args == nil {
			args = map[string]any{}
		}
		parts = append(parts, map[string]any{
			"functionCall": map[string]any{
				"name": p.ToolNameByIndex[index],
				"args": args,
			},
		})
	}
	p.ToolNameByIndex = make(map[int]string)
	p.ToolArgsByIndex = make(map[int]string)

	return p.chunk(parts, mapOpenAIFinishReasonToGemini(p.FinishReason), p.Usage)
}

func (p *openAIToGeminiParams) chunk(parts []any, finishReason string, usage map[string]any) string {
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
	if usage != nil {
		body["usageMetadata"] = usage
	}
	payload, _ := json.Marshal(body)
	return fmt.Sprintf("data: %s\n\n", payload)
}

// ConvertOpenAIResponseToGeminiNonStream converts a complete OpenAI
// chat.completion body into a Gemini response.
func ConvertOpenAIResponseToGeminiNonStream(_ context.Context, modelName string, _, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)

	var parts []any
	message := root.Get("choices.0.message")

	if reasoning := message.Get("reasoning_content"); reasoning.Exists() && reasoning.String() != "" {
		parts = append(parts, map[string]any{"text": reasoning.String(), "thought": true})
	}
	if content := message.Get("content"); content.Exists() && content.String() != "" {
		parts = append(parts, map[string]any{"text": content.String()})
	}
	message.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
		argsStr := util.SafeParseToolArgs(toolCall.Get("function.arguments").String())
		var args any
		if err := json.Unmarshal([]byte(argsStr), &args); err != nil || args == nil {
			args = map[string]any{}
		}
		parts = append(parts, map[string]any{
			"functionCall": map[string]any{
				"name": toolCall.Get("function.name").String(),
				"args": args,
			},
		})
		return true
	})
	if parts == nil {
		parts = []any{}
	}

	model := root.Get("model").String()
	if model == "" {
		model = modelName
	}

	response := map[string]any{
		"candidates": []any{
			map[string]any{
				"index":        0,
				"content":      map[string]any{"role": "model", "parts": parts},
				"finishReason": mapOpenAIFinishReasonToGemini(root.Get("choices.0.finish_reason").String()),
			},
		},
		"modelVersion": model,
	}
	if usage := root.Get("usage"); usage.Exists() {
		usageMetadata := map[string]any{
			"promptTokenCount":     usage.Get("prompt_tokens").Int(),
			"candidatesTokenCount": usage.Get("completion_tokens").Int(),
			"totalTokenCount":      usage.Get("total_tokens").Int(),
		}
		if cached := usage.Get("prompt_tokens_details.cached_tokens"); cached.Exists() && cached.Int() > 0 {
			usageMetadata["cachedContentTokenCount"] = cached.Int()
		}
		response["usageMetadata"] = usageMetadata
	}

	responseJSON, _ := json.Marshal(response)
	return string(responseJSON)
}

// mapOpenAIFinishReasonToGemini maps OpenAI finish reasons to Gemini finish
// reasons. Tool call completions report STOP, matching Gemini's own wire
// behavior for function calling.
func mapOpenAIFinishReasonToGemini(reason string) string {
	switch reason {
	case "length":
		return "MAX_TOKENS"
	case "content_filter":
		return "SAFETY"
	default:
		return "STOP"
	}
}
