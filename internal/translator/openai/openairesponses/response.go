// Response translation from OpenAI Chat Completions back to the Responses
// API. The Responses stream is event typed with lifecycle frames around each
// output item; items are opened lazily as deltas arrive and closed when the
// terminal finish_reason chunk lands.
package openairesponses

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// openAIToResponsesParams accumulates per-stream conversion state.
type openAIToResponsesParams struct {
	ResponseID string
	Created    int64
	Started    bool
	// NextOutputIndex numbers output items as they open.
	NextOutputIndex int
	// TextItemIndex is the open message item, -1 when none.
	TextItemIndex int
	TextItemID    string
	Text          string
	Reasoning     string
	// ToolItemByIndex maps an OpenAI tool_calls index to its output item.
	ToolItemByIndex map[int]int
	ToolCallIDs     map[int]string
	ToolNames       map[int]string
	ToolArgs        map[int]string
	FinishReason    string
	Usage           map[string]any
	CompletedSent   bool
}

// ConvertOpenAIResponseToOpenAIResponses converts OpenAI streaming chunks
// into Responses streaming events.
func ConvertOpenAIResponseToOpenAIResponses(_ context.Context, modelName string, _, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &openAIToResponsesParams{
			ResponseID:      "resp_" + uuid.NewString(),
			Created:         time.Now().Unix(),
			TextItemIndex:   -1,
			ToolItemByIndex: make(map[int]int),
			ToolCallIDs:     make(map[int]string),
			ToolNames:       make(map[int]string),
			ToolArgs:        make(map[int]string),
		}
	}
	state := (*param).(*openAIToResponsesParams)

	if strings.TrimSpace(string(rawJSON)) == "[DONE]" {
		return state.finishEvents(modelName)
	}

	root := gjson.ParseBytes(rawJSON)
	var events []string

	if !state.Started {
		state.Started = true
		events = append(events,
			state.event("response.created", map[string]any{
				"response": state.responseBody(modelName, "in_progress", nil),
			}),
			state.event("response.in_progress", map[string]any{
				"response": state.responseBody(modelName, "in_progress", nil),
			}),
		)
	}

	delta := root.Get("choices.0.delta")

	if reasoning := delta.Get("reasoning_content"); reasoning.Exists() && reasoning.String() != "" {
		state.Reasoning += reasoning.String()
		events = append(events, state.event("response.reasoning_summary_text.delta", map[string]any{
			"delta": reasoning.String(),
		}))
	}

	if content := delta.Get("content"); content.Exists() && content.String() != "" {
		if state.TextItemIndex < 0 {
			state.TextItemIndex = state.NextOutputIndex
			state.NextOutputIndex++
			state.TextItemID = "msg_" + uuid.NewString()
			events = append(events,
				state.event("response.output_item.added", map[string]any{
					"output_index": state.TextItemIndex,
					"item": map[string]any{
						"type":    "message",
						"id":      state.TextItemID,
						"role":    "assistant",
						"content": []any{},
					},
				}),
				state.event("response.content_part.added", map[string]any{
					"output_index":  state.TextItemIndex,
					"item_id":       state.TextItemID,
					"content_index": 0,
					"part":          map[string]any{"type": "output_text", "text": ""},
				}),
			)
		}
		state.Text += content.String()
		events = append(events, state.event("response.output_text.delta", map[string]any{
			"output_index":  state.TextItemIndex,
			"item_id":       state.TextItemID,
			"content_index": 0,
			"delta":         content.String(),
		}))
	}

	delta.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
		index := int(toolCall.Get("index").Int())

		if name := toolCall.Get("function.name"); name.Exists() && name.String() != "" {
			outputIndex := state.NextOutputIndex
			state.NextOutputIndex++
			state.ToolItemByIndex[index] = outputIndex
			state.ToolCallIDs[index] = toolCall.Get("id").String()
			state.ToolNames[index] = name.String()
			events = append(events, state.event("response.output_item.added", map[string]any{
				"output_index": outputIndex,
				"item": map[string]any{
					"type":      "function_call",
					"call_id":   state.ToolCallIDs[index],
					"name":      name.String(),
					"arguments": "",
				},
			}))
		}

		if args := toolCall.Get("function.arguments"); args.Exists() && args.String() != "" {
			if outputIndex, ok := state.ToolItemByIndex[index]; ok {
				state.ToolArgs[index] += args.String()
				events = append(events, state.event("response.function_call_arguments.delta", map[string]any{
					"output_index": outputIndex,
					"delta":        args.String(),
				}))
			}
		}
		return true
	})

	if usage := root.Get("usage"); usage.Exists() && usage.Type != gjson.Null {
		state.Usage = map[string]any{
			"input_tokens":  usage.Get("prompt_tokens").Int(),
			"output_tokens": usage.Get("completion_tokens").Int(),
			"total_tokens":  usage.Get("total_tokens").Int(),
		}
		if cached := usage.Get("prompt_tokens_details.cached_tokens"); cached.Exists() && cached.Int() > 0 {
			state.Usage["input_tokens_details"] = map[string]any{"cached_tokens": cached.Int()}
		}
	}

	if finishReason := root.Get("choices.0.finish_reason"); finishReason.Exists() && finishReason.String() != "" {
		state.FinishReason = finishReason.String()
	}

	return events
}

// finishEvents closes open items and emits response.completed once, on the
// terminal [DONE] marker, after usage had a chance to arrive.
func (p *openAIToResponsesParams) finishEvents(modelName string) []string {
	if p.CompletedSent {
		return nil
	}
	p.CompletedSent = true

	var events []string
	var output []any

	if p.TextItemIndex >= 0 {
		events = append(events,
			p.event("response.output_text.done", map[string]any{
				"output_index":  p.TextItemIndex,
				"item_id":       p.TextItemID,
				"content_index": 0,
				"text":          p.Text,
			}),
			p.event("response.content_part.done", map[string]any{
				"output_index":  p.TextItemIndex,
				"item_id":       p.TextItemID,
				"content_index": 0,
				"part":          map[string]any{"type": "output_text", "text": p.Text},
			}),
			p.event("response.output_item.done", map[string]any{
				"output_index": p.TextItemIndex,
				"item": map[string]any{
					"type":    "message",
					"id":      p.TextItemID,
					"role":    "assistant",
					"content": []any{map[string]any{"type": "output_text", "text": p.Text}},
				},
			}),
		)
		output = append(output, map[string]any{
			"type":    "message",
			"id":      p.TextItemID,
			"role":    "assistant",
			"content": []any{map[string]any{"type": "output_text", "text": p.Text}},
		})
	}

	// Tool items close in caller index order so replayed streams are stable.
	toolIndexes := make([]int, 0, len(p.ToolItemByIndex))
	for index := range p.ToolItemByIndex {
		toolIndexes = append(toolIndexes, index)
	}
	sort.Ints(toolIndexes)
	for _, index := range toolIndexes {
		outputIndex := p.ToolItemByIndex[index]
		item := map[string]any{
			"type":      "function_call",
			"call_id":   p.ToolCallIDs[index],
			"name":      p.ToolNames[index],
			"arguments": p.ToolArgs[index],
		}
		events = append(events,
			p.event("response.function_call_arguments.done", map[string]any{
				"output_index": outputIndex,
				"arguments":    p.ToolArgs[index],
			}),
			p.event("response.output_item.done", map[string]any{
				"output_index": outputIndex,
				"item":         item,
			}),
		)
		output = append(output, item)
	}

	status := "completed"
	body := p.responseBody(modelName, status, output)
	if p.FinishReason == "length" {
		body["status"] = "incomplete"
		body["incomplete_details"] = map[string]any{"reason": "max_output_tokens"}
		events = append(events, p.event("response.incomplete", map[string]any{"response": body}))
	} else {
		events = append(events, p.event("response.completed", map[string]any{"response": body}))
	}
	return events
}

func (p *openAIToResponsesParams) responseBody(modelName, status string, output []any) map[string]any {
	if output == nil {
		output = []any{}
	}
	body := map[string]any{
		"id":         p.ResponseID,
		"object":     "response",
		"created_at": p.Created,
		"status":     status,
		"model":      modelName,
		"output":     output,
	}
	if p.Usage != nil {
		body["usage"] = p.Usage
	}
	return body
}

func (p *openAIToResponsesParams) event(eventType string, body map[string]any) string {
	body["type"] = eventType
	payload, _ := json.Marshal(body)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload)
}

// ConvertOpenAIResponseToOpenAIResponsesNonStream converts a complete OpenAI
// chat.completion body into a Responses body.
func ConvertOpenAIResponseToOpenAIResponsesNonStream(_ context.Context, modelName string, _, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)
	message := root.Get("choices.0.message")

	var output []any
	if reasoning := message.Get("reasoning_content"); reasoning.Exists() && reasoning.String() != "" {
		output = append(output, map[string]any{
			"type":    "reasoning",
			"id":      "rs_" + uuid.NewString(),
			"summary": []any{map[string]any{"type": "summary_text", "text": reasoning.String()}},
		})
	}
	if content := message.Get("content"); content.Exists() && content.String() != "" {
		output = append(output, map[string]any{
			"type":    "message",
			"id":      "msg_" + uuid.NewString(),
			"role":    "assistant",
			"content": []any{map[string]any{"type": "output_text", "text": content.String()}},
		})
	}
	message.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
		output = append(output, map[string]any{
			"type":      "function_call",
			"call_id":   toolCall.Get("id").String(),
			"name":      toolCall.Get("function.name").String(),
			"arguments": toolCall.Get("function.arguments").String(),
		})
		return true
	})
	if output == nil {
		output = []any{}
	}

	model := root.Get("model").String()
	if model == "" {
		model = modelName
	}

	response := map[string]any{
		"id":         "resp_" + uuid.NewString(),
		"object":     "response",
		"created_at": root.Get("created").Int(),
		"status":     "completed",
		"model":      model,
		"output":     output,
	}
	if root.Get("choices.0.finish_reason").String() == "length" {
		response["status"] = "incomplete"
		response["incomplete_details"] = map[string]any{"reason": "max_output_tokens"}
	}
	if usage := root.Get("usage"); usage.Exists() {
		responsesUsage := map[string]any{
			"input_tokens":  usage.Get("prompt_tokens").Int(),
			"output_tokens": usage.Get("completion_tokens").Int(),
			"total_tokens":  usage.Get("total_tokens").Int(),
		}
		if cached := usage.Get("prompt_tokens_details.cached_tokens"); cached.Exists() && cached.Int() > 0 {
			responsesUsage["input_tokens_details"] = map[string]any{"cached_tokens": cached.Int()}
		}
		response["usage"] = responsesUsage
	}

	responseJSON, _ := json.Marshal(response)
	return string(responseJSON)
}
