// Package claude provides request translation from the Anthropic Messages
// API to OpenAI Chat Completions. System blocks are prepended as a system
// message, tool_result blocks become tool role messages, and tool_use blocks
// become assistant tool_calls. Orphan tool calls with no matching result
// downstream are stripped to keep OpenAI's reference integrity.
package claude

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ReasoningMaxTokens caps max_completion_tokens when a thinking-enabled
// Claude request carries no explicit max_tokens. Configured at startup.
var ReasoningMaxTokens int64 = 128000

// ConvertClaudeRequestToOpenAI parses and transforms an Anthropic Messages
// request into OpenAI Chat Completions format.
func ConvertClaudeRequestToOpenAI(modelName string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)
	out := `{"model":"","messages":[]}`

	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", stream)

	// Thinking budget maps onto reasoning_effort by threshold, and shifts
	// the token limit onto max_completion_tokens.
	thinkingEnabled := root.Get("thinking.type").String() == "enabled"
	if thinkingEnabled {
		budget := root.Get("thinking.budget_tokens").Int()
		effort := "high"
		switch {
		case budget <= 50:
			effort = "low"
		case budget <= 200:
			effort = "medium"
		}
		out, _ = sjson.Set(out, "reasoning_effort", effort)
		if maxTokens := root.Get("max_tokens"); maxTokens.Exists() {
			out, _ = sjson.Set(out, "max_completion_tokens", maxTokens.Int())
		} else {
			out, _ = sjson.Set(out, "max_completion_tokens", ReasoningMaxTokens)
		}
	} else if maxTokens := root.Get("max_tokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_tokens", maxTokens.Int())
	}

	if temp := root.Get("temperature"); temp.Exists() {
		out, _ = sjson.Set(out, "temperature", temp.Float())
	}
	if topP := root.Get("top_p"); topP.Exists() {
		out, _ = sjson.Set(out, "top_p", topP.Float())
	}

	if stopSequences := root.Get("stop_sequences"); stopSequences.IsArray() {
		var stops []string
		stopSequences.ForEach(func(_, value gjson.Result) bool {
			stops = append(stops, value.String())
			return true
		})
		if len(stops) == 1 {
			out, _ = sjson.Set(out, "stop", stops[0])
		} else if len(stops) > 1 {
			out, _ = sjson.Set(out, "stop", stops)
		}
	}

	// Collect the set of tool_use ids that have a matching tool_result
	// anywhere downstream, so orphan calls can be dropped.
	resolvedToolIDs := make(map[string]bool)
	root.Get("messages").ForEach(func(_, message gjson.Result) bool {
		message.Get("content").ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == "tool_result" {
				resolvedToolIDs[block.Get("tool_use_id").String()] = true
			}
			return true
		})
		return true
	})

	var messages []map[string]any

	// System instruction is prepended as role=system.
	if system := root.Get("system"); system.Exists() {
		text := ""
		if system.Type == gjson.String {
			text = system.String()
		} else if system.IsArray() {
			system.ForEach(func(_, block gjson.Result) bool {
				text += block.Get("text").String()
				return true
			})
		}
		if text != "" {
			messages = append(messages, map[string]any{"role": "system", "content": text})
		}
	}

	root.Get("messages").ForEach(func(_, message gjson.Result) bool {
		role := message.Get("role").String()
		content := message.Get("content")

		if content.Type == gjson.String {
			messages = append(messages, map[string]any{"role": role, "content": content.String()})
			return true
		}

		text := ""
		var toolCalls []any
		content.ForEach(func(_, block gjson.Result) bool {
			switch block.Get("type").String() {
			case "text":
				text += block.Get("text").String()
			case "image":
				if source := block.Get("source"); source.Get("type").String() == "base64" {
					url := "data:" + source.Get("media_type").String() + ";base64," + source.Get("data").String()
					messages = append(messages, map[string]any{
						"role": role,
						"content": []any{
							map[string]any{"type": "image_url", "image_url": map[string]any{"url": url}},
						},
					})
				}
			case "tool_use":
				id := block.Get("id").String()
				if !resolvedToolIDs[id] {
					return true
				}
				args := "{}"
				if input := block.Get("input"); input.Exists() {
					if argsJSON, err := json.Marshal(input.Value()); err == nil {
						args = string(argsJSON)
					}
				}
				toolCalls = append(toolCalls, map[string]any{
					"id":   id,
					"type": "function",
					"function": map[string]any{
						"name":      block.Get("name").String(),
						"arguments": args,
					},
				})
			case "tool_result":
				body := block.Get("content")
				content := body.String()
				if body.IsArray() {
					content = ""
					body.ForEach(func(_, part gjson.Result) bool {
						content += part.Get("text").String()
						return true
					})
				}
				messages = append(messages, map[string]any{
					"role":         "tool",
					"tool_call_id": block.Get("tool_use_id").String(),
					"content":      content,
				})
			}
			return true
		})

		if text != "" || len(toolCalls) > 0 {
			msg := map[string]any{"role": role, "content": text}
			if role == "assistant" && len(toolCalls) > 0 {
				msg["tool_calls"] = toolCalls
			}
			messages = append(messages, msg)
		}
		return true
	})

	if len(messages) > 0 {
		messagesJSON, _ := json.Marshal(messages)
		out, _ = sjson.SetRaw(out, "messages", string(messagesJSON))
	}

	// Tools: {name, description, input_schema} -> OpenAI function tools.
	if tools := root.Get("tools"); tools.IsArray() {
		toolsJSON := "[]"
		tools.ForEach(func(_, tool gjson.Result) bool {
			openAITool := `{"type":"function","function":{"name":"","description":""}}`
			openAITool, _ = sjson.Set(openAITool, "function.name", tool.Get("name").String())
			openAITool, _ = sjson.Set(openAITool, "function.description", tool.Get("description").String())
			if schema := tool.Get("input_schema"); schema.Exists() {
				openAITool, _ = sjson.SetRaw(openAITool, "function.parameters", schema.Raw)
			}
			toolsJSON, _ = sjson.SetRaw(toolsJSON, "-1", openAITool)
			return true
		})
		if len(gjson.Parse(toolsJSON).Array()) > 0 {
			out, _ = sjson.SetRaw(out, "tools", toolsJSON)
		}
	}

	// tool_choice mapping: auto->auto, any->required, none->none, tool->function.
	if toolChoice := root.Get("tool_choice"); toolChoice.Exists() {
		switch toolChoice.Get("type").String() {
		case "any":
			out, _ = sjson.Set(out, "tool_choice", "required")
		case "none":
			out, _ = sjson.Set(out, "tool_choice", "none")
		case "tool":
			choiceJSON := `{"type":"function","function":{"name":""}}`
			choiceJSON, _ = sjson.Set(choiceJSON, "function.name", toolChoice.Get("name").String())
			out, _ = sjson.SetRaw(out, "tool_choice", choiceJSON)
		default:
			out, _ = sjson.Set(out, "tool_choice", "auto")
		}
	}

	return []byte(out)
}
