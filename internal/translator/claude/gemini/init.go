package gemini

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolGemini,
		constant.ProtocolClaude,
		ConvertGeminiRequestToClaude,
		translator.ResponseTransform{
			Stream:    ConvertClaudeResponseToGemini,
			NonStream: ConvertClaudeResponseToGeminiNonStream,
			ModelList: modellist.Transform(constant.ProtocolGemini, constant.ProtocolClaude),
		},
	)
}
