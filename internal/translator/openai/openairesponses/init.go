package openairesponses

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolOpenAIResponses,
		constant.ProtocolOpenAI,
		ConvertOpenAIResponsesRequestToOpenAI,
		translator.ResponseTransform{
			Stream:    ConvertOpenAIResponseToOpenAIResponses,
			NonStream: ConvertOpenAIResponseToOpenAIResponsesNonStream,
			ModelList: modellist.Transform(constant.ProtocolOpenAIResponses, constant.ProtocolOpenAI),
		},
	)
}
