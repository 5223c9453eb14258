// Package openairesponses provides request translation from the OpenAI
// Responses API to Chat Completions. Instructions become a system message,
// typed input items become chat messages, and the flat Responses tool
// declaration nests back into the function tool shape.
package openairesponses

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConvertOpenAIResponsesRequestToOpenAI parses and transforms an OpenAI
// Responses request into Chat Completions format.
func ConvertOpenAIResponsesRequestToOpenAI(modelName string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)
	out := `{"model":"","messages":[]}`

	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", stream)

	if temp := root.Get("temperature"); temp.Exists() {
		out, _ = sjson.Set(out, "temperature", temp.Float())
	}
	if topP := root.Get("top_p"); topP.Exists() {
		out, _ = sjson.Set(out, "top_p", topP.Float())
	}
	if maxTokens := root.Get("max_output_tokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_completion_tokens", maxTokens.Int())
	}
	if effort := root.Get("reasoning.effort"); effort.Exists() {
		out, _ = sjson.Set(out, "reasoning_effort", effort.String())
	}

	var messages []map[string]any

	if instructions := root.Get("instructions"); instructions.Exists() && instructions.String() != "" {
		messages = append(messages, map[string]any{"role": "system", "content": instructions.String()})
	}

	input := root.Get("input")
	if input.Type == gjson.String {
		messages = append(messages, map[string]any{"role": "user", "content": input.String()})
	} else if input.IsArray() {
		input.ForEach(func(_, item gjson.Result) bool {
			itemType := item.Get("type").String()
			// Bare {role, content} items are messages.
			if itemType == "" && item.Get("role").Exists() {
				itemType = "message"
			}
			switch itemType {
			case "message":
				messages = append(messages, convertResponsesMessage(item))
			case "function_call":
				messages = append(messages, map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []any{
						map[string]any{
							"id":   item.Get("call_id").String(),
							"type": "function",
							"function": map[string]any{
								"name":      item.Get("name").String(),
								"arguments": item.Get("arguments").String(),
							},
						},
					},
				})
			case "function_call_output":
				messages = append(messages, map[string]any{
					"role":         "tool",
					"tool_call_id": item.Get("call_id").String(),
					"content":      item.Get("output").String(),
				})
			}
			return true
		})
	}

	if len(messages) > 0 {
		messagesJSON, _ := json.Marshal(messages)
		out, _ = sjson.SetRaw(out, "messages", string(messagesJSON))
	}

	if tools := root.Get("tools"); tools.IsArray() {
		toolsJSON := "[]"
		tools.ForEach(func(_, tool gjson.Result) bool {
			if tool.Get("type").String() != "function" {
				return true
			}
			openAITool := `{"type":"function","function":{"name":"","description":""}}`
			openAITool, _ = sjson.Set(openAITool, "function.name", tool.Get("name").String())
			openAITool, _ = sjson.Set(openAITool, "function.description", tool.Get("description").String())
			if params := tool.Get("parameters"); params.Exists() {
				openAITool, _ = sjson.SetRaw(openAITool, "function.parameters", params.Raw)
			}
			toolsJSON, _ = sjson.SetRaw(toolsJSON, "-1", openAITool)
			return true
		})
		if len(gjson.Parse(toolsJSON).Array()) > 0 {
			out, _ = sjson.SetRaw(out, "tools", toolsJSON)
		}
	}

	if toolChoice := root.Get("tool_choice"); toolChoice.Exists() {
		if toolChoice.Type == gjson.String {
			out, _ = sjson.Set(out, "tool_choice", toolChoice.String())
		} else if toolChoice.Get("type").String() == "function" {
			choiceJSON := `{"type":"function","function":{"name":""}}`
			choiceJSON, _ = sjson.Set(choiceJSON, "function.name", toolChoice.Get("name").String())
			out, _ = sjson.SetRaw(out, "tool_choice", choiceJSON)
		}
	}

	return []byte(out)
}

func convertResponsesMessage(item gjson.Result) map[string]any {
	role := item.Get("role").String()
	content := item.Get("content")

	if content.Type == gjson.String {
		return map[string]any{"role": role, "content": content.String()}
	}

	text := ""
	var parts []any
	content.ForEach(func(_, part gjson.Result) bool {
		switch part.Get("type").String() {
		case "input_text", "output_text", "text":
			text += part.Get("text").String()
			parts = append(parts, map[string]any{"type": "text", "text": part.Get("text").String()})
		case "input_image":
			parts = append(parts, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": part.Get("image_url").String()},
			})
		}
		return true
	})

	// Only multimodal user content keeps the part array shape.
	if role == "user" && len(parts) > 0 {
		for _, part := range parts {
			if part.(map[string]any)["type"] != "text" {
				return map[string]any{"role": role, "content": parts}
			}
		}
	}
	return map[string]any{"role": role, "content": text}
}
