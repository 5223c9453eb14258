package gemini

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolGemini,
		constant.ProtocolOpenAI,
		ConvertGeminiRequestToOpenAI,
		translator.ResponseTransform{
			Stream:    ConvertOpenAIResponseToGemini,
			NonStream: ConvertOpenAIResponseToGeminiNonStream,
			ModelList: modellist.Transform(constant.ProtocolGemini, constant.ProtocolOpenAI),
		},
	)
}
