package openai

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolOpenAI,
		constant.ProtocolOpenAIResponses,
		ConvertOpenAIRequestToOpenAIResponses,
		translator.ResponseTransform{
			Stream:    ConvertOpenAIResponsesResponseToOpenAI,
			NonStream: ConvertOpenAIResponsesResponseToOpenAINonStream,
			ModelList: modellist.Transform(constant.ProtocolOpenAI, constant.ProtocolOpenAIResponses),
		},
	)
}
