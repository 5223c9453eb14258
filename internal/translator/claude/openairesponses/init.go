// Package openairesponses bridges the OpenAI Responses frontend onto Claude
// backends through the Chat Completions dialect.
package openairesponses

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/claude/openai"
	"github.com/llmgate/llmgate/internal/translator/compose"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	openaicompat "github.com/llmgate/llmgate/internal/translator/openai/openairesponses"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolOpenAIResponses,
		constant.ProtocolClaude,
		compose.Request(openaicompat.ConvertOpenAIResponsesRequestToOpenAI, openai.ConvertOpenAIRequestToClaude),
		translator.ResponseTransform{
			Stream:    compose.Stream(openai.ConvertClaudeResponseToOpenAI, openaicompat.ConvertOpenAIResponseToOpenAIResponses),
			NonStream: compose.NonStream(openai.ConvertClaudeResponseToOpenAINonStream, openaicompat.ConvertOpenAIResponseToOpenAIResponsesNonStream),
			ModelList: modellist.Transform(constant.ProtocolOpenAIResponses, constant.ProtocolClaude),
		},
	)
}
