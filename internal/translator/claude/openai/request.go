// Package openai provides request translation from OpenAI Chat Completions
// to the Anthropic Messages API. It extracts model information, system
// instructions, message contents, and tool declarations from the raw JSON
// request and rebuilds them in the shape the Claude API expects.
package openai

import (
	"encoding/json"
	"strings"

	"github.com/llmgate/llmgate/internal/util"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const defaultClaudeMaxTokens = 200000

// ConvertOpenAIRequestToClaude parses and transforms an OpenAI Chat
// Completions request into Anthropic Messages API format.
func ConvertOpenAIRequestToClaude(modelName string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)
	out := `{"model":"","messages":[]}`

	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", stream)

	if maxTokens := root.Get("max_tokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_tokens", maxTokens.Int())
	} else if maxTokens = root.Get("max_completion_tokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_tokens", maxTokens.Int())
	} else {
		out, _ = sjson.Set(out, "max_tokens", defaultClaudeMaxTokens)
	}

	if temp := root.Get("temperature"); temp.Exists() {
		out, _ = sjson.Set(out, "temperature", temp.Float())
	}
	if topP := root.Get("top_p"); topP.Exists() {
		out, _ = sjson.Set(out, "top_p", topP.Float())
	}

	// stop -> stop_sequences
	if stop := root.Get("stop"); stop.Exists() {
		if stop.IsArray() {
			var stops []string
			stop.ForEach(func(_, value gjson.Result) bool {
				stops = append(stops, value.String())
				return true
			})
			if len(stops) > 0 {
				out, _ = sjson.Set(out, "stop_sequences", stops)
			}
		} else if stop.Type == gjson.String {
			out, _ = sjson.Set(out, "stop_sequences", []string{stop.String()})
		}
	}

	// reasoning_effort -> thinking budget
	if effort := root.Get("reasoning_effort"); effort.Exists() {
		budget := 0
		switch effort.String() {
		case "low":
			budget = 4096
		case "medium":
			budget = 12288
		case "high":
			budget = 24576
		}
		if budget > 0 {
			out, _ = sjson.Set(out, "thinking.type", "enabled")
			out, _ = sjson.Set(out, "thinking.budget_tokens", budget)
		}
	}

	// Messages: system entries feed the system field, tool results become
	// user tool_result blocks, and adjacent same-role blocks are merged.
	var systemBlocks []any
	var messages []map[string]any

	appendMessage := func(role string, blocks []any) {
		if len(blocks) == 0 {
			return
		}
		if len(messages) > 0 && messages[len(messages)-1]["role"] == role {
			prev := messages[len(messages)-1]["content"].([]any)
			messages[len(messages)-1]["content"] = append(prev, blocks...)
			return
		}
		messages = append(messages, map[string]any{"role": role, "content": blocks})
	}

	root.Get("messages").ForEach(func(_, message gjson.Result) bool {
		role := message.Get("role").String()
		content := message.Get("content")

		switch role {
		case "system", "developer":
			if content.Type == gjson.String {
				systemBlocks = append(systemBlocks, map[string]any{"type": "text", "text": content.String()})
			} else if content.IsArray() {
				content.ForEach(func(_, part gjson.Result) bool {
					if text := part.Get("text"); text.Exists() {
						systemBlocks = append(systemBlocks, map[string]any{"type": "text", "text": text.String()})
					}
					return true
				})
			}
		case "tool", "function":
			block := map[string]any{
				"type":        "tool_result",
				"tool_use_id": message.Get("tool_call_id").String(),
				"content":     content.String(),
			}
			appendMessage("user", []any{block})
		case "assistant":
			var blocks []any
			if content.Type == gjson.String && content.String() != "" {
				blocks = append(blocks, map[string]any{"type": "text", "text": content.String()})
			} else if content.IsArray() {
				content.ForEach(func(_, part gjson.Result) bool {
					if part.Get("type").String() == "text" {
						blocks = append(blocks, map[string]any{"type": "text", "text": part.Get("text").String()})
					}
					return true
				})
			}
			message.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
				blocks = append(blocks, toolUseBlock(toolCall))
				return true
			})
			appendMessage("assistant", blocks)
		default: // user
			var blocks []any
			if content.Type == gjson.String {
				blocks = append(blocks, map[string]any{"type": "text", "text": content.String()})
			} else if content.IsArray() {
				content.ForEach(func(_, part gjson.Result) bool {
					switch part.Get("type").String() {
					case "text":
						blocks = append(blocks, map[string]any{"type": "text", "text": part.Get("text").String()})
					case "image_url":
						if block := imageBlock(part.Get("image_url.url").String()); block != nil {
							blocks = append(blocks, block)
						}
					}
					return true
				})
			}
			appendMessage("user", blocks)
		}
		return true
	})

	if len(systemBlocks) > 0 {
		systemJSON, _ := json.Marshal(systemBlocks)
		out, _ = sjson.SetRaw(out, "system", string(systemJSON))
	}
	if len(messages) > 0 {
		messagesJSON, _ := json.Marshal(messages)
		out, _ = sjson.SetRaw(out, "messages", string(messagesJSON))
	}

	// Tools: function declarations become {name, description, input_schema}.
	if tools := root.Get("tools"); tools.Exists() && tools.IsArray() {
		toolsJSON := "[]"
		tools.ForEach(func(_, tool gjson.Result) bool {
			if tool.Get("type").String() != "function" {
				return true
			}
			claudeTool := `{"name":"","description":""}`
			claudeTool, _ = sjson.Set(claudeTool, "name", tool.Get("function.name").String())
			claudeTool, _ = sjson.Set(claudeTool, "description", tool.Get("function.description").String())
			if params := tool.Get("function.parameters"); params.Exists() {
				claudeTool, _ = sjson.SetRaw(claudeTool, "input_schema", params.Raw)
			} else {
				claudeTool, _ = sjson.SetRaw(claudeTool, "input_schema", `{"type":"object"}`)
			}
			toolsJSON, _ = sjson.SetRaw(toolsJSON, "-1", claudeTool)
			return true
		})
		if len(gjson.Parse(toolsJSON).Array()) > 0 {
			out, _ = sjson.SetRaw(out, "tools", toolsJSON)
		}
	}

	// tool_choice mapping: auto->auto, required->any, none->none, function->tool.
	if toolChoice := root.Get("tool_choice"); toolChoice.Exists() {
		switch {
		case toolChoice.Type == gjson.String:
			switch toolChoice.String() {
			case "required":
				out, _ = sjson.Set(out, "tool_choice.type", "any")
			case "none":
				out, _ = sjson.Set(out, "tool_choice.type", "none")
			default:
				out, _ = sjson.Set(out, "tool_choice.type", "auto")
			}
		case toolChoice.Get("function.name").Exists():
			out, _ = sjson.Set(out, "tool_choice.type", "tool")
			out, _ = sjson.Set(out, "tool_choice.name", toolChoice.Get("function.name").String())
		}
	}

	return []byte(out)
}

func toolUseBlock(toolCall gjson.Result) map[string]any {
	block := map[string]any{
		"type": "tool_use",
		"id":   toolCall.Get("id").String(),
		"name": toolCall.Get("function.name").String(),
	}
	argsStr := util.SafeParseToolArgs(toolCall.Get("function.arguments").String())
	var args any
	if err := json.Unmarshal([]byte(argsStr), &args); err == nil && args != nil {
		block["input"] = args
	} else {
		block["input"] = map[string]any{}
	}
	return block
}

// imageBlock converts an OpenAI image_url part into a Claude image source.
// Data URIs become base64 sources; remote URLs become url sources.
func imageBlock(url string) map[string]any {
	if url == "" {
		return nil
	}
	if strings.HasPrefix(url, "data:") {
		rest := strings.TrimPrefix(url, "data:")
		semi := strings.Index(rest, ";base64,")
		if semi < 0 {
			return nil
		}
		return map[string]any{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": rest[:semi],
				"data":       rest[semi+len(";base64,"):],
			},
		}
	}
	return map[string]any{
		"type": "image",
		"source": map[string]any{
			"type": "url",
			"url":  url,
		},
	}
}
