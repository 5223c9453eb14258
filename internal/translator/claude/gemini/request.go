// Package gemini provides request translation from Gemini GenerateContent to
// the Anthropic Messages API. Contents become messages with the model role
// renamed to assistant, functionCall parts become tool_use blocks, and
// functionResponse parts become tool_result blocks.
package gemini

import (
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const defaultClaudeMaxTokens = 200000

// ConvertGeminiRequestToClaude parses and transforms a Gemini GenerateContent
// request into Anthropic Messages format.
func ConvertGeminiRequestToClaude(modelName string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)
	out := `{"model":"","messages":[]}`

	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", stream)

	generationConfig := root.Get("generationConfig")
	if maxTokens := generationConfig.Get("maxOutputTokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_tokens", maxTokens.Int())
	} else {
		out, _ = sjson.Set(out, "max_tokens", defaultClaudeMaxTokens)
	}
	if temp := generationConfig.Get("temperature"); temp.Exists() {
		out, _ = sjson.Set(out, "temperature", temp.Float())
	}
	if topP := generationConfig.Get("topP"); topP.Exists() {
		out, _ = sjson.Set(out, "top_p", topP.Float())
	}
	if stops := generationConfig.Get("stopSequences"); stops.IsArray() {
		var sequences []string
		stops.ForEach(func(_, value gjson.Result) bool {
			sequences = append(sequences, value.String())
			return true
		})
		if len(sequences) > 0 {
			out, _ = sjson.Set(out, "stop_sequences", sequences)
		}
	}
	if thinkingConfig := generationConfig.Get("thinkingConfig"); thinkingConfig.Exists() {
		if budget := thinkingConfig.Get("thinkingBudget"); budget.Exists() && budget.Int() > 0 {
			out, _ = sjson.Set(out, "thinking.type", "enabled")
			out, _ = sjson.Set(out, "thinking.budget_tokens", budget.Int())
		}
	}

	if system := root.Get("systemInstruction"); system.Exists() {
		text := ""
		system.Get("parts").ForEach(func(_, part gjson.Result) bool {
			text += part.Get("text").String()
			return true
		})
		if text != "" {
			out, _ = sjson.Set(out, "system", text)
		}
	}

	// Gemini has no tool call ids; synthetic ids pair each functionCall with
	// the functionResponse of the same name, in order.
	toolIDsByName := make(map[string][]string)
	callCounter := 0

	var messages []map[string]any

	root.Get("contents").ForEach(func(_, content gjson.Result) bool {
		role := "user"
		if content.Get("role").String() == "model" {
			role = "assistant"
		}

		var blocks []any
		content.Get("parts").ForEach(func(_, part gjson.Result) bool {
			switch {
			case part.Get("functionCall").Exists():
				call := part.Get("functionCall")
				name := call.Get("name").String()
				args := map[string]any{}
				if callArgs := call.Get("args"); callArgs.Exists() {
					if parsed, ok := callArgs.Value().(map[string]any); ok {
						args = parsed
					}
				}
				callCounter++
				id := "toolu_" + name + "_" + strconv.Itoa(callCounter)
				toolIDsByName[name] = append(toolIDsByName[name], id)
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    id,
					"name":  name,
					"input": args,
				})
			case part.Get("functionResponse").Exists():
				response := part.Get("functionResponse")
				name := response.Get("name").String()
				id := ""
				if ids := toolIDsByName[name]; len(ids) > 0 {
					id = ids[0]
					toolIDsByName[name] = ids[1:]
				}
				body := response.Get("response").Raw
				if body == "" {
					body = "{}"
				}
				blocks = append(blocks, map[string]any{
					"type":        "tool_result",
					"tool_use_id": id,
					"content":     body,
				})
			case part.Get("inlineData").Exists():
				data := part.Get("inlineData")
				blocks = append(blocks, map[string]any{
					"type": "image",
					"source": map[string]any{
						"type":       "base64",
						"media_type": data.Get("mimeType").String(),
						"data":       data.Get("data").String(),
					},
				})
			case part.Get("fileData").Exists():
				blocks = append(blocks, map[string]any{
					"type": "image",
					"source": map[string]any{
						"type": "url",
						"url":  part.Get("fileData.fileUri").String(),
					},
				})
			case part.Get("text").Exists():
				blocks = append(blocks, map[string]any{"type": "text", "text": part.Get("text").String()})
			}
			return true
		})
		if len(blocks) > 0 {
			messages = append(messages, map[string]any{"role": role, "content": blocks})
		}
		return true
	})

	if len(messages) > 0 {
		messagesJSON, _ := json.Marshal(messages)
		out, _ = sjson.SetRaw(out, "messages", string(messagesJSON))
	}

	if declarations := root.Get("tools.0.functionDeclarations"); declarations.IsArray() {
		toolsJSON := "[]"
		declarations.ForEach(func(_, declaration gjson.Result) bool {
			claudeTool := `{"name":"","description":""}`
			claudeTool, _ = sjson.Set(claudeTool, "name", declaration.Get("name").String())
			claudeTool, _ = sjson.Set(claudeTool, "description", declaration.Get("description").String())
			if params := declaration.Get("parameters"); params.Exists() {
				claudeTool, _ = sjson.SetRaw(claudeTool, "input_schema", params.Raw)
			} else {
				claudeTool, _ = sjson.SetRaw(claudeTool, "input_schema", `{"type":"object","properties":{}}`)
			}
			toolsJSON, _ = sjson.SetRaw(toolsJSON, "-1", claudeTool)
			return true
		})
		if len(gjson.Parse(toolsJSON).Array()) > 0 {
			out, _ = sjson.SetRaw(out, "tools", toolsJSON)
		}
	}

	if callingConfig := root.Get("toolConfig.functionCallingConfig"); callingConfig.Exists() {
		switch callingConfig.Get("mode").String() {
		case "ANY":
			if names := callingConfig.Get("allowedFunctionNames"); names.IsArray() && len(names.Array()) == 1 {
				out, _ = sjson.Set(out, "tool_choice.type", "tool")
				out, _ = sjson.Set(out, "tool_choice.name", names.Array()[0].String())
			} else {
				out, _ = sjson.Set(out, "tool_choice.type", "any")
			}
		case "NONE":
			out, _ = sjson.Set(out, "tool_choice.type", "none")
		case "AUTO":
			out, _ = sjson.Set(out, "tool_choice.type", "auto")
		}
	}

	return []byte(out)
}
