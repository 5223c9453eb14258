// Response translation from the OpenAI Responses API back to Chat
// Completions. The Responses stream is event typed; text deltas, reasoning
// summary deltas and function call argument deltas map onto
// chat.completion.chunk deltas, and response.completed closes the stream.
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

// responsesToOpenAIParams accumulates per-stream conversion state.
type responsesToOpenAIParams struct {
	ResponseID string
	Created    int64
	RoleSent   bool
	// ToolIndexByOutput maps a Responses output_index to a tool_calls index.
	ToolIndexByOutput map[int]int
	NextToolIndex     int
	// CurrentToolIndex receives argument deltas between output_item events.
	CurrentToolIndex int
	DoneSent         bool
}

// ConvertOpenAIResponsesResponseToOpenAI converts Responses streaming events
// into OpenAI chat.completion.chunk objects.
func ConvertOpenAIResponsesResponseToOpenAI(_ context.Context, modelName string, _, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &responsesToOpenAIParams{
			ResponseID:        "chatcmpl-" + uuid.NewString(),
			Created:           time.Now().Unix(),
			ToolIndexByOutput: make(map[int]int),
			CurrentToolIndex:  -1,
		}
	}
	state := (*param).(*responsesToOpenAIParams)

	if strings.TrimSpace(string(rawJSON)) == "[DONE]" {
		if state.DoneSent {
			return nil
		}
		state.DoneSent = true
		return []string{"data: [DONE]\n\n"}
	}

	root := gjson.ParseBytes(rawJSON)

	switch root.Get("type").String() {
	case "response.created":
		if id := root.Get("response.id"); id.Exists() && id.String() != "" {
			state.ResponseID = id.String()
		}
		state.RoleSent = true
		return []string{state.chunk(modelName, map[string]any{"role": "assistant", "content": ""}, nil, nil)}

	case "response.output_item.added":
		item := root.Get("item")
		if item.Get("type").String() != "function_call" {
			return nil
		}
		outputIndex := int(root.Get("output_index").Int())
		toolIndex := state.NextToolIndex
		state.NextToolIndex++
		state.ToolIndexByOutput[outputIndex] = toolIndex
		state.CurrentToolIndex = toolIndex
		toolCalls := []any{
			map[string]any{
				"index": toolIndex,
				"id":    item.Get("call_id").String(),
				"type":  "function",
				"function": map[string]any{
					"name":      item.Get("name").String(),
					"arguments": "",
				},
			},
		}
		return []string{state.chunk(modelName, map[string]any{"tool_calls": toolCalls}, nil, nil)}

	case "response.function_call_arguments.delta":
		if state.CurrentToolIndex < 0 {
			return nil
		}
		if toolIndex, ok := state.ToolIndexByOutput[int(root.Get("output_index").Int())]; ok {
			state.CurrentToolIndex = toolIndex
		}
		toolCalls := []any{
			map[string]any{
				"index":    state.CurrentToolIndex,
				"function": map[string]any{"arguments": root.Get("delta").String()},
			},
		}
		return []string{state.chunk(modelName, map[string]any{"tool_calls": toolCalls}, nil, nil)}

	case "response.output_text.delta":
		if delta := root.Get("delta"); delta.String() != "" {
			return []string{state.chunk(modelName, map[string]any{"content": delta.String()}, nil, nil)}
		}
		return nil

	case "response.reasoning_summary_text.delta", "response.reasoning_text.delta":
		if delta := root.Get("delta"); delta.String() != "" {
			return []string{state.chunk(modelName, map[string]any{"reasoning_content": delta.String()}, nil, nil)}
		}
		return nil

	case "response.completed", "response.incomplete":
		response := root.Get("response")
		finishReason := responsesFinishReason(response, state.NextToolIndex > 0)
		var usage map[string]any
		if u := response.Get("usage"); u.Exists() {
			usage = usageFromResponses(u)
		}
		chunks := []string{state.chunk(modelName, map[string]any{}, &finishReason, usage)}
		if !state.DoneSent {
			state.DoneSent = true
			chunks = append(chunks, "data: [DONE]\n\n")
		}
		return chunks
	}

	return nil
}

func (p *responsesToOpenAIParams) chunk(model string, delta map[string]any, finishReason *string, usage map[string]any) string {
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

// ConvertOpenAIResponsesResponseToOpenAINonStream converts a complete
// Responses body into an OpenAI chat.completion.
func ConvertOpenAIResponsesResponseToOpenAINonStream(_ context.Context, modelName string, _, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)

	content := ""
	reasoning := ""
	var toolCalls []any
	root.Get("output").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "message":
			item.Get("content").ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "output_text" {
					content += part.Get("text").String()
				}
				return true
			})
		case "reasoning":
			item.Get("summary").ForEach(func(_, part gjson.Result) bool {
				reasoning += part.Get("text").String()
				return true
			})
		case "function_call":
			toolCalls = append(toolCalls, map[string]any{
				"id":   item.Get("call_id").String(),
				"type": "function",
				"function": map[string]any{
					"name":      item.Get("name").String(),
					"arguments": item.Get("arguments").String(),
				},
			})
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

	model := root.Get("model").String()
	if model == "" {
		model = modelName
	}

	response := map[string]any{
		"id":      "chatcmpl-" + uuid.NewString(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"message":       message,
				"finish_reason": responsesFinishReason(root, len(toolCalls) > 0),
			},
		},
	}
	if usage := root.Get("usage"); usage.Exists() {
		response["usage"] = usageFromResponses(usage)
	}

	responseJSON, _ := json.Marshal(response)
	return string(responseJSON)
}

func usageFromResponses(usage gjson.Result) map[string]any {
	out := map[string]any{
		"prompt_tokens":     usage.Get("input_tokens").Int(),
		"completion_tokens": usage.Get("output_tokens").Int(),
		"total_tokens":      usage.Get("total_tokens").Int(),
	}
	if cached := usage.Get("input_tokens_details.cached_tokens"); cached.Exists() && cached.Int() > 0 {
		out["prompt_tokens_details"] = map[string]any{"cached_tokens": cached.Int()}
	}
	if reasoning := usage.Get("output_tokens_details.reasoning_tokens"); reasoning.Exists() && reasoning.Int() > 0 {
		out["completion_tokens_details"] = map[string]any{"reasoning_tokens": reasoning.Int()}
	}
	return out
}

// responsesFinishReason derives an OpenAI finish reason from a Responses
// status. Function call output always reports tool_calls; an incomplete
// response capped by max_output_tokens reports length.
func responsesFinishReason(response gjson.Result, hasToolCalls bool) string {
	if hasToolCalls {
		return "tool_calls"
	}
	if response.Get("status").String() == "incomplete" &&
		response.Get("incomplete_details.reason").String() == "max_output_tokens" {
		return "length"
	}
	return "stop"
}
