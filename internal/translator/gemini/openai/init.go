package openai

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolOpenAI,
		constant.ProtocolGemini,
		ConvertOpenAIRequestToGemini,
		translator.ResponseTransform{
			Stream:    ConvertGeminiResponseToOpenAI,
			NonStream: ConvertGeminiResponseToOpenAINonStream,
			ModelList: modellist.Transform(constant.ProtocolOpenAI, constant.ProtocolGemini),
		},
	)
}
