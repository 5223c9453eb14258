// Response translation from Gemini GenerateContent back to the Anthropic
// Messages API. Anthropic frame events are synthesized around the Gemini
// part stream; a functionCall part arrives complete, so its block opens,
// carries one input_json_delta and closes within the same chunk batch.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// geminiToClaudeParams accumulates per-stream conversion state.
type geminiToClaudeParams struct {
	MessageID string
	Model     string
	Started   bool
	// NextBlockIndex numbers Claude content blocks as they open.
	NextBlockIndex int
	// TextBlockIndex is the open text block, -1 when none.
	TextBlockIndex int
	// ThinkingBlockIndex is the open thinking block, -1 when none.
	ThinkingBlockIndex int
	SawToolCall        bool
	FinishReason       string
	MessageDeltaSent   bool
	InputTokens        int64
	OutputTokens       int64
	CachedTokens       int64
}

// ConvertGeminiResponseToClaude converts Gemini streaming chunks into
// Anthropic streaming events.
func ConvertGeminiResponseToClaude(_ context.Context, modelName string, _, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &geminiToClaudeParams{
			MessageID:          "msg_" + uuid.NewString(),
			Model:              modelName,
			TextBlockIndex:     -1,
			ThinkingBlockIndex: -1,
		}
	}
	state := (*param).(*geminiToClaudeParams)

	if strings.TrimSpace(string(rawJSON)) == "[DONE]" {
		return state.finishEvents(true)
	}

	root := gjson.ParseBytes(rawJSON)
	if wrapped := root.Get("response"); wrapped.Exists() {
		root = wrapped
	}

	var events []string

	if !state.Started {
		state.Started = true
		events = append(events, state.event("message_start", map[string]any{
			"message": map[string]any{
				"id":            state.MessageID,
				"type":          "message",
				"role":          "assistant",
				"model":         state.Model,
				"content":       []any{},
				"stop_reason":   nil,
				"stop_sequence": nil,
				"usage":         map[string]any{"input_tokens": 0, "output_tokens": 0},
			},
		}))
	}

	candidate := root.Get("candidates.0")
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		switch {
		case part.Get("functionCall").Exists():
			events = append(events, state.closeOpenBlocks()...)
			call := part.Get("functionCall")
			args := "{}"
			if callArgs := call.Get("args"); callArgs.Exists() {
				if argsJSON, err := json.Marshal(callArgs.Value()); err == nil {
					args = string(argsJSON)
				}
			}
			blockIndex := state.NextBlockIndex
			state.NextBlockIndex++
			state.SawToolCall = true
			events = append(events,
				state.event("content_block_start", map[string]any{
					"index": blockIndex,
					"content_block": map[string]any{
						"type":  "tool_use",
						"id":    "toolu_" + uuid.NewString(),
						"name":  call.Get("name").String(),
						"input": map[string]any{},
					},
				}),
				state.event("content_block_delta", map[string]any{
					"index": blockIndex,
					"delta": map[string]any{"type": "input_json_delta", "partial_json": args},
				}),
				state.event("content_block_stop", map[string]any{"index": blockIndex}),
			)
		case part.Get("text").Exists():
			text := part.Get("text").String()
			if text == "" {
				return true
			}
			if part.Get("thought").Bool() {
				if state.TextBlockIndex >= 0 {
					events = append(events, state.event("content_block_stop", map[string]any{"index": state.TextBlockIndex}))
					state.TextBlockIndex = -1
				}
				if state.ThinkingBlockIndex < 0 {
					state.ThinkingBlockIndex = state.NextBlockIndex
					state.NextBlockIndex++
					events = append(events, state.event("content_block_start", map[string]any{
						"index":         state.ThinkingBlockIndex,
						"content_block": map[string]any{"type": "thinking", "thinking": ""},
					}))
				}
				events = append(events, state.event("content_block_delta", map[string]any{
					"index": state.ThinkingBlockIndex,
					"delta": map[string]any{"type": "thinking_delta", "thinking": text},
				}))
			} else {
				if state.ThinkingBlockIndex >= 0 {
					events = append(events, state.event("content_block_stop", map[string]any{"index": state.ThinkingBlockIndex}))
					state.ThinkingBlockIndex = -1
				}
				if state.TextBlockIndex < 0 {
					state.TextBlockIndex = state.NextBlockIndex
					state.NextBlockIndex++
					events = append(events, state.event("content_block_start", map[string]any{
						"index":         state.TextBlockIndex,
						"content_block": map[string]any{"type": "text", "text": ""},
					}))
				}
				events = append(events, state.event("content_block_delta", map[string]any{
					"index": state.TextBlockIndex,
					"delta": map[string]any{"type": "text_delta", "text": text},
				}))
			}
		}
		return true
	})

	if meta := root.Get("usageMetadata"); meta.Exists() {
		if prompt := meta.Get("promptTokenCount"); prompt.Exists() {
			state.InputTokens = prompt.Int()
		}
		if completion := meta.Get("candidatesTokenCount"); completion.Exists() {
			state.OutputTokens = completion.Int()
		}
		if cached := meta.Get("cachedContentTokenCount"); cached.Exists() {
			state.CachedTokens = cached.Int()
		}
	}

	if finishReason := candidate.Get("finishReason"); finishReason.Exists() && finishReason.String() != "" {
		state.FinishReason = finishReason.String()
		events = append(events, state.finishEvents(false)...)
	}

	return events
}

func (p *geminiToClaudeParams) closeOpenBlocks() []string {
	var events []string
	if p.ThinkingBlockIndex >= 0 {
		events = append(events, p.event("content_block_stop", map[string]any{"index": p.ThinkingBlockIndex}))
		p.ThinkingBlockIndex = -1
	}
	if p.TextBlockIndex >= 0 {
		events = append(events, p.event("content_block_stop", map[string]any{"index": p.TextBlockIndex}))
		p.TextBlockIndex = -1
	}
	return events
}

func (p *geminiToClaudeParams) finishEvents(terminal bool) []string {
	events := p.closeOpenBlocks()

	if !p.MessageDeltaSent && p.FinishReason != "" {
		usage := map[string]any{
			"input_tokens":  p.InputTokens,
			"output_tokens": p.OutputTokens,
		}
		if p.CachedTokens > 0 {
			usage["cache_read_input_tokens"] = p.CachedTokens
		}
		events = append(events, p.event("message_delta", map[string]any{
			"delta": map[string]any{
				"stop_reason":   mapGeminiFinishReasonToClaude(p.FinishReason, p.SawToolCall),
				"stop_sequence": nil,
			},
			"usage": usage,
		}))
		p.MessageDeltaSent = true
	}

	if terminal {
		events = append(events, p.event("message_stop", map[string]any{}))
	}
	return events
}

func (p *geminiToClaudeParams) event(eventType string, body map[string]any) string {
	body["type"] = eventType
	payload, _ := json.Marshal(body)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload)
}

// ConvertGeminiResponseToClaudeNonStream converts a complete Gemini response
// body into an Anthropic message.
func ConvertGeminiResponseToClaudeNonStream(_ context.Context, modelName string, _, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)
	if wrapped := root.Get("response"); wrapped.Exists() {
		root = wrapped
	}

	var contentBlocks []any
	sawToolCall := false
	root.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		switch {
		case part.Get("functionCall").Exists():
			call := part.Get("functionCall")
			args := map[string]any{}
			if callArgs := call.Get("args"); callArgs.Exists() {
				if parsed, ok := callArgs.Value().(map[string]any); ok {
					args = parsed
				}
			}
			sawToolCall = true
			contentBlocks = append(contentBlocks, map[string]any{
				"type":  "tool_use",
				"id":    "toolu_" + uuid.NewString(),
				"name":  call.Get("name").String(),
				"input": args,
			})
		case part.Get("text").Exists():
			if part.Get("thought").Bool() {
				contentBlocks = append(contentBlocks, map[string]any{"type": "thinking", "thinking": part.Get("text").String()})
			} else {
				contentBlocks = append(contentBlocks, map[string]any{"type": "text", "text": part.Get("text").String()})
			}
		}
		return true
	})
	if contentBlocks == nil {
		contentBlocks = []any{}
	}

	usage := map[string]any{
		"input_tokens":  root.Get("usageMetadata.promptTokenCount").Int(),
		"output_tokens": root.Get("usageMetadata.candidatesTokenCount").Int(),
	}
	if cached := root.Get("usageMetadata.cachedContentTokenCount"); cached.Exists() && cached.Int() > 0 {
		usage["cache_read_input_tokens"] = cached.Int()
	}

	response := map[string]any{
		"id":            "msg_" + uuid.NewString(),
		"type":          "message",
		"role":          "assistant",
		"model":         modelName,
		"content":       contentBlocks,
		"stop_reason":   mapGeminiFinishReasonToClaude(root.Get("candidates.0.finishReason").String(), sawToolCall),
		"stop_sequence": nil,
		"usage":         usage,
	}

	responseJSON, _ := json.Marshal(response)
	return string(responseJSON)
}

// mapGeminiFinishReasonToClaude maps Gemini finish reasons to Anthropic stop
// reasons. A turn that produced function calls always reports tool_use.
func mapGeminiFinishReasonToClaude(reason string, sawToolCall bool) string {
	if sawToolCall {
		return "tool_use"
	}
	switch reason {
	case "MAX_TOKENS":
		return "max_tokens"
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT", "BLOCKLIST":
		return "stop_sequence"
	default:
		return "end_turn"
	}
}
