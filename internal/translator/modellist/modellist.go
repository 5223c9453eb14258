// Package modellist converts model catalogues between protocol formats.
// Every protocol pair shares the same two-step conversion: parse the backend
// list into a neutral slice, then render it in the caller's dialect.
package modellist

import (
	"encoding/json"
	"time"

	"github.com/llmgate/llmgate/internal/constant"
	"github.com/tidwall/gjson"
)

// Model is the protocol-neutral catalogue entry.
type Model struct {
	ID          string
	DisplayName string
	OwnedBy     string
	InputLimit  int64
	OutputLimit int64
}

// Parse extracts the neutral model slice from a backend list payload.
func Parse(backendProtocol string, rawJSON []byte) []Model {
	root := gjson.ParseBytes(rawJSON)
	var models []Model

	appendEntry := func(id, display, owner string, in, out int64) {
		if id != "" {
			models = append(models, Model{ID: id, DisplayName: display, OwnedBy: owner, InputLimit: in, OutputLimit: out})
		}
	}

	switch backendProtocol {
	case constant.ProtocolGemini:
		root.Get("models").ForEach(func(_, m gjson.Result) bool {
			name := m.Get("name").String()
			// Gemini names arrive as "models/<id>".
			if idx := len("models/"); len(name) > idx && name[:idx] == "models/" {
				name = name[idx:]
			}
			appendEntry(name, m.Get("displayName").String(), "google", m.Get("inputTokenLimit").Int(), m.Get("outputTokenLimit").Int())
			return true
		})
	case constant.ProtocolClaude:
		root.Get("data").ForEach(func(_, m gjson.Result) bool {
			appendEntry(m.Get("id").String(), m.Get("display_name").String(), "anthropic", 0, 0)
			return true
		})
	default:
		// OpenAI and OpenAI Responses both use {object:"list",data:[...]}.
		root.Get("data").ForEach(func(_, m gjson.Result) bool {
			appendEntry(m.Get("id").String(), m.Get("id").String(), m.Get("owned_by").String(), 0, 0)
			return true
		})
	}
	return models
}

// Render serializes the neutral slice in the caller's dialect.
func Render(frontendProtocol string, models []Model) []byte {
	now := time.Now().Unix()

	switch frontendProtocol {
	case constant.ProtocolGemini:
		entries := make([]map[string]any, 0, len(models))
		for _, m := range models {
			entry := map[string]any{
				"name":                       "models/" + m.ID,
				"displayName":                m.DisplayName,
				"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent"},
			}
			if m.InputLimit > 0 {
				entry["inputTokenLimit"] = m.InputLimit
			}
			if m.OutputLimit > 0 {
				entry["outputTokenLimit"] = m.OutputLimit
			}
			entries = append(entries, entry)
		}
		out, _ := json.Marshal(map[string]any{"models": entries})
		return out
	case constant.ProtocolClaude:
		entries := make([]map[string]any, 0, len(models))
		for _, m := range models {
			entries = append(entries, map[string]any{
				"type":         "model",
				"id":           m.ID,
				"display_name": m.DisplayName,
			})
		}
		out, _ := json.Marshal(map[string]any{"data": entries, "has_more": false})
		return out
	default:
		entries := make([]map[string]any, 0, len(models))
		for _, m := range models {
			owner := m.OwnedBy
			if owner == "" {
				owner = "unknown"
			}
			entries = append(entries, map[string]any{
				"id":       m.ID,
				"object":   "model",
				"created":  now,
				"owned_by": owner,
			})
		}
		out, _ := json.Marshal(map[string]any{"object": "list", "data": entries})
		return out
	}
}

// Transform returns a ModelListTransform-compatible function for the pair.
func Transform(frontendProtocol, backendProtocol string) func([]byte) []byte {
	return func(rawJSON []byte) []byte {
		return Render(frontendProtocol, Parse(backendProtocol, rawJSON))
	}
}
