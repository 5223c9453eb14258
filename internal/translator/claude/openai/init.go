package openai

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolOpenAI,
		constant.ProtocolClaude,
		ConvertOpenAIRequestToClaude,
		translator.ResponseTransform{
			Stream:    ConvertClaudeResponseToOpenAI,
			NonStream: ConvertClaudeResponseToOpenAINonStream,
			ModelList: modellist.Transform(constant.ProtocolOpenAI, constant.ProtocolClaude),
		},
	)
}
