// Package claude provides request translation from the Anthropic Messages
// API to Gemini GenerateContent. System blocks become systemInstruction,
// tool_use blocks become functionCall parts, and tool_result blocks become
// functionResponse parts with the name resolved through the tool_use id.
package claude

import (
	"encoding/json"

	"github.com/llmgate/llmgate/internal/util"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	geminiMaxTokensCap     = 65536
	geminiDefaultMaxTokens = 65534
	defaultTemperature     = 1.0
	defaultTopP            = 0.95
)

// ConvertClaudeRequestToGemini parses and transforms an Anthropic Messages
// request into Gemini GenerateContent format.
func ConvertClaudeRequestToGemini(modelName string, rawJSON []byte, _ bool) []byte {
	root := gjson.ParseBytes(rawJSON)
	out := `{"contents":[]}`

	if temp := root.Get("temperature"); temp.Exists() {
		out, _ = sjson.Set(out, "generationConfig.temperature", temp.Float())
	} else {
		out, _ = sjson.Set(out, "generationConfig.temperature", defaultTemperature)
	}
	if topP := root.Get("top_p"); topP.Exists() {
		out, _ = sjson.Set(out, "generationConfig.topP", topP.Float())
	} else {
		out, _ = sjson.Set(out, "generationConfig.topP", defaultTopP)
	}
	maxTokens := int64(geminiDefaultMaxTokens)
	if mt := root.Get("max_tokens"); mt.Exists() {
		maxTokens = mt.Int()
	}
	if maxTokens > geminiMaxTokensCap {
		maxTokens = geminiMaxTokensCap
	}
	out, _ = sjson.Set(out, "generationConfig.maxOutputTokens", maxTokens)

	if stopSequences := root.Get("stop_sequences"); stopSequences.IsArray() {
		var stops []string
		stopSequences.ForEach(func(_, value gjson.Result) bool {
			stops = append(stops, value.String())
			return true
		})
		if len(stops) > 0 {
			out, _ = sjson.Set(out, "generationConfig.stopSequences", stops)
		}
	}

	// Thinking budget carries over directly; Gemini reports thoughts as
	// parts flagged thought=true when includeThoughts is set.
	if root.Get("thinking.type").String() == "enabled" {
		if budget := root.Get("thinking.budget_tokens"); budget.Exists() {
			out, _ = sjson.Set(out, "generationConfig.thinkingConfig.thinkingBudget", budget.Int())
		}
		out, _ = sjson.Set(out, "generationConfig.thinkingConfig.includeThoughts", true)
	}

	if system := root.Get("system"); system.Exists() {
		var systemParts []any
		if system.Type == gjson.String {
			systemParts = append(systemParts, map[string]any{"text": system.String()})
		} else if system.IsArray() {
			system.ForEach(func(_, block gjson.Result) bool {
				if text := block.Get("text"); text.Exists() {
					systemParts = append(systemParts, map[string]any{"text": text.String()})
				}
				return true
			})
		}
		if len(systemParts) > 0 {
			systemJSON, _ := json.Marshal(map[string]any{"role": "user", "parts": systemParts})
			out, _ = sjson.SetRaw(out, "systemInstruction", string(systemJSON))
		}
	}

	// tool_use names keyed by id so tool_result blocks can resolve their
	// functionResponse name.
	toolNameByID := make(map[string]string)
	root.Get("messages").ForEach(func(_, message gjson.Result) bool {
		message.Get("content").ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == "tool_use" {
				toolNameByID[block.Get("id").String()] = block.Get("name").String()
			}
			return true
		})
		return true
	})

	var contents []map[string]any

	root.Get("messages").ForEach(func(_, message gjson.Result) bool {
		role := "user"
		if message.Get("role").String() == "assistant" {
			role = "model"
		}
		content := message.Get("content")

		if content.Type == gjson.String {
			if content.String() != "" {
				contents = append(contents, map[string]any{
					"role":  role,
					"parts": []any{map[string]any{"text": content.String()}},
				})
			}
			return true
		}

		var parts []any
		content.ForEach(func(_, block gjson.Result) bool {
			switch block.Get("type").String() {
			case "text":
				parts = append(parts, map[string]any{"text": block.Get("text").String()})
			case "image":
				if source := block.Get("source"); source.Get("type").String() == "base64" {
					parts = append(parts, map[string]any{
						"inlineData": map[string]any{
							"mimeType": source.Get("media_type").String(),
							"data":     source.Get("data").String(),
						},
					})
				}
			case "tool_use":
				args := map[string]any{}
				if input := block.Get("input"); input.Exists() && input.IsObject() {
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
			case "tool_result":
				body := block.Get("content")
				text := body.String()
				if body.IsArray() {
					text = ""
					body.ForEach(func(_, part gjson.Result) bool {
						text += part.Get("text").String()
						return true
					})
				}
				var response any
				if err := json.Unmarshal([]byte(text), &response); err != nil {
					response = map[string]any{"content": text}
				}
				parts = append(parts, map[string]any{
					"functionResponse": map[string]any{
						"name":     toolNameByID[block.Get("tool_use_id").String()],
						"response": response,
					},
				})
			}
			return true
		})
		if len(parts) > 0 {
			contents = append(contents, map[string]any{"role": role, "parts": parts})
		}
		return true
	})

	if len(contents) > 0 {
		contentsJSON, _ := json.Marshal(contents)
		out, _ = sjson.SetRaw(out, "contents", string(contentsJSON))
	}

	if tools := root.Get("tools"); tools.IsArray() && len(tools.Array()) > 0 {
		declarations := "[]"
		tools.ForEach(func(_, tool gjson.Result) bool {
			declaration := `{"name":"","description":""}`
			declaration, _ = sjson.Set(declaration, "name", tool.Get("name").String())
			declaration, _ = sjson.Set(declaration, "description", tool.Get("description").String())
			if schema := tool.Get("input_schema"); schema.Exists() {
				declaration, _ = sjson.SetRaw(declaration, "parameters", util.SanitizeSchemaForGemini(schema.Raw))
			}
			declarations, _ = sjson.SetRaw(declarations, "-1", declaration)
			return true
		})
		out, _ = sjson.SetRaw(out, "tools.0.functionDeclarations", declarations)
	}

	if toolChoice := root.Get("tool_choice"); toolChoice.Exists() {
		switch toolChoice.Get("type").String() {
		case "any":
			out, _ = sjson.Set(out, "toolConfig.functionCallingConfig.mode", "ANY")
		case "none":
			out, _ = sjson.Set(out, "toolConfig.functionCallingConfig.mode", "NONE")
		case "tool":
			out, _ = sjson.Set(out, "toolConfig.functionCallingConfig.mode", "ANY")
			out, _ = sjson.Set(out, "toolConfig.functionCallingConfig.allowedFunctionNames", []string{toolChoice.Get("name").String()})
		case "auto":
			out, _ = sjson.Set(out, "toolConfig.functionCallingConfig.mode", "AUTO")
		}
	}

	return []byte(out)
}
