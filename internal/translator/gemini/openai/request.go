// Package openai provides request translation from OpenAI Chat Completions
// to the Gemini GenerateContent API. Messages become contents with the
// assistant role renamed to model, tool messages become functionResponse
// parts, and tool schemas are filtered down to the keys Gemini accepts.
package openai

import (
	"encoding/json"
	"strings"

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

// ConvertOpenAIRequestToGemini parses and transforms an OpenAI Chat
// Completions request into Gemini GenerateContent format.
func ConvertOpenAIRequestToGemini(modelName string, rawJSON []byte, _ bool) []byte {
	root := gjson.ParseBytes(rawJSON)
	out := `{"contents":[]}`

	// Generation config with documented defaults and the hard output cap.
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
	} else if mt = root.Get("max_completion_tokens"); mt.Exists() {
		maxTokens = mt.Int()
	}
	if maxTokens > geminiMaxTokensCap {
		maxTokens = geminiMaxTokensCap
	}
	out, _ = sjson.Set(out, "generationConfig.maxOutputTokens", maxTokens)

	if stop := root.Get("stop"); stop.Exists() {
		var stops []string
		if stop.IsArray() {
			stop.ForEach(func(_, value gjson.Result) bool {
				stops = append(stops, value.String())
				return true
			})
		} else if stop.Type == gjson.String {
			stops = []string{stop.String()}
		}
		if len(stops) > 0 {
			out, _ = sjson.Set(out, "generationConfig.stopSequences", stops)
		}
	}

	// Function names announced by prior assistant tool_calls, keyed by id,
	// so tool messages can resolve their functionResponse name.
	toolNameByID := make(map[string]string)
	root.Get("messages").ForEach(func(_, message gjson.Result) bool {
		message.Get("tool_calls").ForEach(func(_, toolCall gjson.Result) bool {
			toolNameByID[toolCall.Get("id").String()] = toolCall.Get("function.name").String()
			return true
		})
		return true
	})

	var systemParts []any
	var contents []map[string]any

	root.Get("messages").ForEach(func(_, message gjson.Result) bool {
		role := message.Get("role").String()
		content := message.Get("content")

		switch role {
		case "system", "developer":
			if content.Type == gjson.String {
				systemParts = append(systemParts, map[string]any{"text": content.String()})
			} else if content.IsArray() {
				content.ForEach(func(_, part gjson.Result) bool {
					if text := part.Get("text"); text.Exists() {
						systemParts = append(systemParts, map[string]any{"text": text.String()})
					}
					return true
				})
			}
		case "tool", "function":
			id := message.Get("tool_call_id").String()
			name := toolNameByID[id]
			var response any
			if err := json.Unmarshal([]byte(content.String()), &response); err != nil {
				response = map[string]any{"content": content.String()}
			}
			contents = append(contents, map[string]any{
				"role": "user",
				"parts": []any{
					map[string]any{
						"functionResponse": map[string]any{
							"name":     name,
							"response": response,
						},
					},
				},
			})
		case "assistant":
			var parts []any
			if content.Type == gjson.String && content.String() != "" {
				parts = append(parts, map[string]any{"text": content.String()})
			} else if content.IsArray() {
				content.ForEach(func(_, part gjson.Result) bool {
					if text := part.Get("text"); text.Exists() {
						parts = append(parts, map[string]any{"text": text.String()})
					}
					return true
				})
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
			if len(parts) > 0 {
				contents = append(contents, map[string]any{"role": "model", "parts": parts})
			}
		default: // user
			var parts []any
			if content.Type == gjson.String {
				parts = append(parts, map[string]any{"text": content.String()})
			} else if content.IsArray() {
				content.ForEach(func(_, part gjson.Result) bool {
					switch part.Get("type").String() {
					case "text":
						parts = append(parts, map[string]any{"text": part.Get("text").String()})
					case "image_url":
						if imagePart := geminiImagePart(part.Get("image_url.url").String()); imagePart != nil {
							parts = append(parts, imagePart)
						}
					}
					return true
				})
			}
			if len(parts) > 0 {
				contents = append(contents, map[string]any{"role": "user", "parts": parts})
			}
		}
		return true
	})

	// A system-only conversation is promoted to a first user turn; Gemini
	// rejects empty contents.
	if len(contents) == 0 && len(systemParts) > 0 {
		contents = append(contents, map[string]any{"role": "user", "parts": systemParts})
		systemParts = nil
	}

	if len(systemParts) > 0 {
		systemJSON, _ := json.Marshal(map[string]any{"role": "user", "parts": systemParts})
		out, _ = sjson.SetRaw(out, "systemInstruction", string(systemJSON))
	}
	if len(contents) > 0 {
		contentsJSON, _ := json.Marshal(contents)
		out, _ = sjson.SetRaw(out, "contents", string(contentsJSON))
	}

	// Tools: one declaration list, schemas filtered to supported keys.
	hasTools := false
	if tools := root.Get("tools"); tools.IsArray() {
		declarations := "[]"
		tools.ForEach(func(_, tool gjson.Result) bool {
			if tool.Get("type").String() != "function" {
				return true
			}
			hasTools = true
			declaration := `{"name":"","description":""}`
			declaration, _ = sjson.Set(declaration, "name", tool.Get("function.name").String())
			declaration, _ = sjson.Set(declaration, "description", tool.Get("function.description").String())
			if params := tool.Get("function.parameters"); params.Exists() {
				declaration, _ = sjson.SetRaw(declaration, "parameters", util.SanitizeSchemaForGemini(params.Raw))
			}
			declarations, _ = sjson.SetRaw(declarations, "-1", declaration)
			return true
		})
		if hasTools {
			out, _ = sjson.SetRaw(out, "tools.0.functionDeclarations", declarations)
		}
	}

	if toolChoice := root.Get("tool_choice"); toolChoice.Exists() && hasTools {
		switch {
		case toolChoice.Type == gjson.String:
			mode := "AUTO"
			switch toolChoice.String() {
			case "required":
				mode = "ANY"
			case "none":
				mode = "NONE"
			}
			out, _ = sjson.Set(out, "toolConfig.functionCallingConfig.mode", mode)
		case toolChoice.Get("function.name").Exists():
			out, _ = sjson.Set(out, "toolConfig.functionCallingConfig.mode", "ANY")
			out, _ = sjson.Set(out, "toolConfig.functionCallingConfig.allowedFunctionNames", []string{toolChoice.Get("function.name").String()})
		}
	}

	// Gemini 2.x and thinking models need explicit text modality, but the
	// field conflicts with function calling and is omitted when tools exist.
	if !hasTools && needsResponseModalities(modelName) {
		out, _ = sjson.Set(out, "generationConfig.responseModalities", []string{"TEXT"})
	}

	return []byte(out)
}

func needsResponseModalities(modelName string) bool {
	return strings.Contains(modelName, "gemini-2") || strings.Contains(modelName, "thinking")
}

func geminiImagePart(url string) map[string]any {
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
			"inlineData": map[string]any{
				"mimeType": rest[:semi],
				"data":     rest[semi+len(";base64,"):],
			},
		}
	}
	return map[string]any{
		"fileData": map[string]any{
			"fileUri": url,
		},
	}
}
