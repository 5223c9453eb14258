// Package claude bridges the Anthropic Messages frontend onto OpenAI
// Responses backends through the Chat Completions dialect.
package claude

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/compose"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	claudecompat "github.com/llmgate/llmgate/internal/translator/openai/claude"
	"github.com/llmgate/llmgate/internal/translator/openairesponses/openai"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolClaude,
		constant.ProtocolOpenAIResponses,
		compose.Request(claudecompat.ConvertClaudeRequestToOpenAI, openai.ConvertOpenAIRequestToOpenAIResponses),
		translator.ResponseTransform{
			Stream:    compose.Stream(openai.ConvertOpenAIResponsesResponseToOpenAI, claudecompat.ConvertOpenAIResponseToClaude),
			NonStream: compose.NonStream(openai.ConvertOpenAIResponsesResponseToOpenAINonStream, claudecompat.ConvertOpenAIResponseToClaudeNonStream),
			ModelList: modellist.Transform(constant.ProtocolClaude, constant.ProtocolOpenAIResponses),
		},
	)
}
