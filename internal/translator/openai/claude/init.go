package claude

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolClaude,
		constant.ProtocolOpenAI,
		ConvertClaudeRequestToOpenAI,
		translator.ResponseTransform{
			Stream:    ConvertOpenAIResponseToClaude,
			NonStream: ConvertOpenAIResponseToClaudeNonStream,
			ModelList: modellist.Transform(constant.ProtocolClaude, constant.ProtocolOpenAI),
		},
	)
}
