// Package gemini provides request translation from Gemini GenerateContent to
// OpenAI Chat Completions. Contents become messages with the model role
// renamed to assistant, functionCall parts become tool_calls, and
// functionResponse parts become tool role messages.
package gemini

import (
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ConvertGeminiRequestToOpenAI parses and transforms a Gemini GenerateContent
// request into OpenAI Chat Completions format.
func ConvertGeminiRequestToOpenAI(modelName string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)
	out := `{"model":"","messages":[]}`

	out, _ = sjson.Set(out, "model", modelName)
	out, _ = sjson.Set(out, "stream", stream)

	generationConfig := root.Get("generationConfig")
	if temp := generationConfig.Get("temperature"); temp.Exists() {
		out, _ = sjson.Set(out, "temperature", temp.Float())
	}
	if topP := generationConfig.Get("topP"); topP.Exists() {
		out, _ = sjson.Set(out, "top_p", topP.Float())
	}
	if maxTokens := generationConfig.Get("maxOutputTokens"); maxTokens.Exists() {
		out, _ = sjson.Set(out, "max_tokens", maxTokens.Int())
	}
	if stops := generationConfig.Get("stopSequences"); stops.IsArray() {
		var sequences []string
		stops.ForEach(func(_, value gjson.Result) bool {
			sequences = append(sequences, value.String())
			return true
		})
		if len(sequences) > 0 {
			out, _ = sjson.Set(out, "stop", sequences)
		}
	}

	var messages []map[string]any

	if system := root.Get("systemInstruction"); system.Exists() {
		text := ""
		system.Get("parts").ForEach(func(_, part gjson.Result) bool {
			text += part.Get("text").String()
			return true
		})
		if text != "" {
			messages = append(messages, map[string]any{"role": "system", "content": text})
		}
	}

	// Gemini omits ids on function calls; synthetic ids pair each call with
	// the functionResponse of the same name, in order.
	callIDsByName := make(map[string][]string)
	callCounter := 0

	root.Get("contents").ForEach(func(_, content gjson.Result) bool {
		role := content.Get("role").String()

		switch role {
		case "model":
			text := ""
			var toolCalls []any
			content.Get("parts").ForEach(func(_, part gjson.Result) bool {
				switch {
				case part.Get("functionCall").Exists():
					call := part.Get("functionCall")
					name := call.Get("name").String()
					args := "{}"
					if callArgs := call.Get("args"); callArgs.Exists() {
						if argsJSON, err := json.Marshal(callArgs.Value()); err == nil {
							args = string(argsJSON)
						}
					}
					callCounter++
					id := callID(name, callCounter)
					callIDsByName[name] = append(callIDsByName[name], id)
					toolCalls = append(toolCalls, map[string]any{
						"id":   id,
						"type": "function",
						"function": map[string]any{
							"name":      name,
							"arguments": args,
						},
					})
				case part.Get("text").Exists():
					text += part.Get("text").String()
				}
				return true
			})
			if text != "" || len(toolCalls) > 0 {
				msg := map[string]any{"role": "assistant", "content": text}
				if len(toolCalls) > 0 {
					msg["tool_calls"] = toolCalls
				}
				messages = append(messages, msg)
			}
		default: // user
			var parts []any
			content.Get("parts").ForEach(func(_, part gjson.Result) bool {
				switch {
				case part.Get("functionResponse").Exists():
					response := part.Get("functionResponse")
					name := response.Get("name").String()
					id := ""
					if ids := callIDsByName[name]; len(ids) > 0 {
						id = ids[0]
						callIDsByName[name] = ids[1:]
					}
					body := response.Get("response").Raw
					if body == "" {
						body = "{}"
					}
					messages = append(messages, map[string]any{
						"role":         "tool",
						"tool_call_id": id,
						"content":      body,
					})
				case part.Get("inlineData").Exists():
					data := part.Get("inlineData")
					url := "data:" + data.Get("mimeType").String() + ";base64," + data.Get("data").String()
					parts = append(parts, map[string]any{"type": "image_url", "image_url": map[string]any{"url": url}})
				case part.Get("fileData").Exists():
					parts = append(parts, map[string]any{
						"type":      "image_url",
						"image_url": map[string]any{"url": part.Get("fileData.fileUri").String()},
					})
				case part.Get("text").Exists():
					parts = append(parts, map[string]any{"type": "text", "text": part.Get("text").String()})
				}
				return true
			})
			if len(parts) == 1 {
				if text, ok := parts[0].(map[string]any)["text"].(string); ok {
					messages = append(messages, map[string]any{"role": "user", "content": text})
					return true
				}
			}
			if len(parts) > 0 {
				messages = append(messages, map[string]any{"role": "user", "content": parts})
			}
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
			openAITool := `{"type":"function","function":{"name":"","description":""}}`
			openAITool, _ = sjson.Set(openAITool, "function.name", declaration.Get("name").String())
			openAITool, _ = sjson.Set(openAITool, "function.description", declaration.Get("description").String())
			if params := declaration.Get("parameters"); params.Exists() {
				openAITool, _ = sjson.SetRaw(openAITool, "function.parameters", params.Raw)
			}
			toolsJSON, _ = sjson.SetRaw(toolsJSON, "-1", openAITool)
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
				choiceJSON := `{"type":"function","function":{"name":""}}`
				choiceJSON, _ = sjson.Set(choiceJSON, "function.name", names.Array()[0].String())
				out, _ = sjson.SetRaw(out, "tool_choice", choiceJSON)
			} else {
				out, _ = sjson.Set(out, "tool_choice", "required")
			}
		case "NONE":
			out, _ = sjson.Set(out, "tool_choice", "none")
		case "AUTO":
			out, _ = sjson.Set(out, "tool_choice", "auto")
		}
	}

	return []byte(out)
}

func callID(name string, counter int) string {
	return "call_" + name + "_" + strconv.Itoa(counter)
}
