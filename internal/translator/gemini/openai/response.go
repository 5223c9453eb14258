// Response translation from Gemini GenerateContent back to OpenAI Chat
// Completions. Code-assist responses arrive wrapped in a "response" envelope
// which is unwrapped before conversion.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// geminiToOpenAIParams accumulates per-stream conversion state.
type geminiToOpenAIParams struct {
	ResponseID string
	Created    int64
	RoleSent   bool
	// NextToolIndex numbers tool_calls entries in OpenAI order.
	NextToolIndex int
	FinishReason  string
}

// ConvertGeminiResponseToOpenAI converts Gemini streaming chunks into OpenAI
// chat.completion.chunk objects.
func ConvertGeminiResponseToOpenAI(_ context.Context, modelName string, _, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &geminiToOpenAIParams{
			ResponseID: "chatcmpl-" + uuid.NewString(),
			Created:    time.Now().Unix(),
		}
	}
	state := (*param).(*geminiToOpenAIParams)

	if strings.TrimSpace(string(rawJSON)) == "[DONE]" {
		return []string{"data: [DONE]\n\n"}
	}

	root := gjson.ParseBytes(rawJSON)
	if wrapped := root.Get("response"); wrapped.Exists() {
		root = wrapped
	}

	var chunks []string

	if !state.RoleSent {
		state.RoleSent = true
		chunks = append(chunks, state.chunk(modelName, map[string]any{"role": "assistant", "content": ""}, nil, nil))
	}

	candidate := root.Get("candidates.0")
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		switch {
		case part.Get("functionCall").Exists():
			call := part.Get("functionCall")
			args := "{}"
			if callArgs := call.Get("args"); callArgs.Exists() {
				if argsJSON, err := json.Marshal(callArgs.Value()); err == nil {
					args = string(argsJSON)
				}
			}
			toolCalls := []any{
				map[string]any{
					"index": state.NextToolIndex,
					"id":    "call_" + uuid.NewString(),
					"type":  "function",
					"function": map[string]any{
						"name":      call.Get("name").String(),
						"arguments": args,
					},
				},
			}
			state.NextToolIndex++
			chunks = append(chunks, state.chunk(modelName, map[string]any{"tool_calls": toolCalls}, nil, nil))
		case part.Get("text").Exists():
			text := part.Get("text").String()
			if text == "" {
				return true
			}
			if part.Get("thought").Bool() {
				chunks = append(chunks, state.chunk(modelName, map[string]any{"reasoning_content": text}, nil, nil))
			} else {
				chunks = append(chunks, state.chunk(modelName, map[string]any{"content": text}, nil, nil))
			}
		}
		return true
	})

	if finishReason := candidate.Get("finishReason"); finishReason.Exists() && finishReason.String() != "" {
		state.FinishReason = mapGeminiFinishReasonToOpenAI(finishReason.String(), state.NextToolIndex > 0)
		var usage map[string]any
		if meta := root.Get("usageMetadata"); meta.Exists() {
			usage = usageFromMetadata(meta)
		}
		chunks = append(chunks, state.chunk(modelName, map[string]any{}, &state.FinishReason, usage))
	}

	return chunks
}

func (p *geminiToOpenAIParams) chunk(model string, delta map[string]any, finishReason *string, usage map[string]any) string {
	choice := map[string]any{
		"index":         0,
		"delta":         delta,
		"finish_reason": nil,
	}
	if finishReason != nil {
		choice["finish_reason"] = *finishReason
	}
	body := map[string]any{
		"id":      p.ResponseID,
		"object":  "chat.completion.chunk",
		"created": p.Created,
		"model":   model,
		"choices": []any{choice},
	}
	if usage != nil {
		body["usage"] = usage
	}
	payload, _ := json.Marshal(body)
	return fmt.Sprintf("data: %s\n\n", payload)
}

// ConvertGeminiResponseToOpenAINonStream converts a complete Gemini response
// body into an OpenAI chat.completion.
func ConvertGeminiResponseToOpenAINonStream(_ context.Context, modelName string, _, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)
	if wrapped := root.Get("response"); wrapped.Exists() {
		root = wrapped
	}

	content := ""
	reasoning := ""
	var toolCalls []any
	root.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		switch {
		case part.Get("functionCall").Exists():
			call := part.Get("functionCall")
			args := "{}"
			if callArgs := call.Get("args"); callArgs.Exists() {
				if argsJSON, err := json.Marshal(callArgs.Value()); err == nil {
					args = string(argsJSON)
				}
			}
			toolCalls = append(toolCalls, map[string]any{
				"id":   "call_" + uuid.NewString(),
				"type": "function",
				"function": map[string]any{
					"name":      call.Get("name").String(),
					"arguments": args,
				},
			})
		case part.Get("text").Exists():
			if part.Get("thought").Bool() {
				reasoning += part.Get("text").String()
			} else {
				content += part.Get("text").String()
			}
		}
		return true
	})

	message := map[string]any{"role": "assistant", "content": content}
	if reasoning != "" {
		message["reasoning_content"] = reasoning
	}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
	}

	response := map[string]any{
		"id":      "chatcmpl-" + uuid.NewString(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   modelName,
		"choices": []any{
			map[string]any{
				"index":         0,
				"message":       message,
				"finish_reason": mapGeminiFinishReasonToOpenAI(root.Get("candidates.0.finishReason").String(), len(toolCalls) > 0),
			},
		},
	}
	if meta := root.Get("usageMetadata"); meta.Exists() {
		response["usage"] = usageFromMetadata(meta)
	}

	responseJSON, _ := json.Marshal(response)
	return string(responseJSON)
}

func usageFromMetadata(meta gjson.Result) map[string]any {
	usage := map[string]any{
		"prompt_tokens":     meta.Get("promptTokenCount").Int(),
		"completion_tokens": meta.Get("candidatesTokenCount").Int(),
		"total_tokens":      meta.Get("totalTokenCount").Int(),
	}
	if cached := meta.Get("cachedContentTokenCount"); cached.Exists() && cached.Int() > 0 {
		usage["prompt_tokens_details"] = map[string]any{"cached_tokens": cached.Int()}
	}
	if thoughts := meta.Get("thoughtsTokenCount"); thoughts.Exists() && thoughts.Int() > 0 {
		usage["completion_tokens_details"] = map[string]any{"reasoning_tokens": thoughts.Int()}
	}
	return usage
}

// mapGeminiFinishReasonToOpenAI maps Gemini finish reasons to OpenAI finish
// reasons. A response that produced function calls always reports tool_calls.
func mapGeminiFinishReasonToOpenAI(reason string, hasToolCalls bool) string {
	if hasToolCalls {
		return "tool_calls"
	}
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT", "BLOCKLIST":
		return "content_filter"
	default:
		return "stop"
	}
}
