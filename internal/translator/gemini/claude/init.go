package claude

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolClaude,
		constant.ProtocolGemini,
		ConvertClaudeRequestToGemini,
		translator.ResponseTransform{
			Stream:    ConvertGeminiResponseToClaude,
			NonStream: ConvertGeminiResponseToClaudeNonStream,
			ModelList: modellist.Transform(constant.ProtocolClaude, constant.ProtocolGemini),
		},
	)
}
