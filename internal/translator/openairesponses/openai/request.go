// Package openai provides request translation from OpenAI Chat Completions
// to the OpenAI Responses API. System and developer messages fold into the
// instructions field, chat messages become typed input items, and the nested
// function tool shape flattens into the Responses declaration.
package openai

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConvertOpenAIRequestToOpenAIResponses parses and transforms an OpenAI Chat
// Completions request into OpenAI Responses format.
func ConvertOpenAIRequestToOpenAIResponses(modelName string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)
	out := `{"model":"","input":[]}`

	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", stream)

	if temp := root.Get("temperature"); temp.Exists() {
		out, _ = sjson.Set(out, "temperature", temp.Float())
	}
	if topP := root.Get("top_p"); topP.Exists() {
		out, _ = sjson.Set(out, "top_p", topP.Float())
	}
	if maxTokens := root.Get("max_tokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_output_tokens", maxTokens.Int())
	} else if maxTokens = root.Get("max_completion_tokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_output_tokens", maxTokens.Int())
	}
	if effort := root.Get("reasoning_effort"); effort.Exists() {
		out, _ = sjson.Set(out, "reasoning.effort", effort.String())
	}

	var instructions []string
	var input []map[string]any

	root.Get("messages").ForEach(func(_, message gjson.Result) bool {
		role := message.Get("role").String()
		content := message.Get("content")

		switch role {
		case "system", "developer":
			if content.Type == gjson.String {
				instructions = append(instructions, content.String())
			} else if content.IsArray() {
				content.ForEach(func(_, part gjson.Result) bool {
					if text := part.Get("text"); text.Exists() {
						instructions = append(instructions, text.String())
					}
					return true
				})
			}
		case "tool", "function":
			input = append(input, map[string]any{
				"type":    "function_call_output",
				"call_id": message.Get("tool_call_id").String(),
				"output":  content.String(),
			})
		case "assistant":
			if content.Type == gjson.String && content.String() != "" {
				input = append(input, map[string]any{
					"type":    "message",
					"role":    "assistant",
					"content": []any{map[string]any{"type": "output_text", "text": content.String()}},
				})
			}
			message.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
				input = append(input, map[string]any{
					"type":      "function_call",
					"call_id":   toolCall.Get("id").String(),
					"name":      toolCall.Get("function.name").String(),
					"arguments": toolCall.Get("function.arguments").String(),
				})
				return true
			})
		default: // user
			var parts []any
			if content.Type == gjson.String {
				parts = append(parts, map[string]any{"type": "input_text", "text": content.String()})
			} else if content.IsArray() {
				content.ForEach(func(_, part gjson.Result) bool {
					switch part.Get("type").String() {
					case "text":
						parts = append(parts, map[string]any{"type": "input_text", "text": part.Get("text").String()})
					case "image_url":
						parts = append(parts, map[string]any{"type": "input_image", "image_url": part.Get("image_url.url").String()})
					}
					return true
				})
			}
			if len(parts) > 0 {
				input = append(input, map[string]any{"type": "message", "role": "user", "content": parts})
			}
		}
		return true
	})

	if len(instructions) > 0 {
		out, _ = sjson.Set(out, "instructions", strings.Join(instructions, "\n\n"))
	}
	if len(input) > 0 {
		inputJSON, _ := json.Marshal(input)
		out, _ = sjson.SetRaw(out, "input", string(inputJSON))
	}

	if tools := root.Get("tools"); tools.IsArray() {
		toolsJSON := "[]"
		tools.ForEach(func(_, tool gjson.Result) bool {
			if tool.Get("type").String() != "function" {
				return true
			}
			declaration := `{"type":"function","name":"","description":""}`
			declaration, _ = sjson.Set(declaration, "name", tool.Get("function.name").String())
			declaration, _ = sjson.Set(declaration, "description", tool.Get("function.description").String())
			if params := tool.Get("function.parameters"); params.Exists() {
				declaration, _ = sjson.SetRaw(declaration, "parameters", params.Raw)
			}
			toolsJSON, _ = sjson.SetRaw(toolsJSON, "-1", declaration)
			return true
		})
		if len(gjson.Parse(toolsJSON).Array()) > 0 {
			out, _ = sjson.SetRaw(out, "tools", toolsJSON)
		}
	}

	if toolChoice := root.Get("tool_choice"); toolChoice.Exists() {
		if toolChoice.Type == gjson.String {
			out, _ = sjson.Set(out, "tool_choice", toolChoice.String())
		} else if name := toolChoice.Get("function.name"); name.Exists() {
			out, _ = sjson.Set(out, "tool_choice.type", "function")
			out, _ = sjson.Set(out, "tool_choice.name", name.String())
		}
	}

	return []byte(out)
}
