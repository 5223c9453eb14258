// Package openairesponses bridges the OpenAI Responses frontend onto Gemini
// backends through the Chat Completions dialect.
package openairesponses

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/compose"
	"github.com/llmgate/llmgate/internal/translator/gemini/openai"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	openaicompat "github.com/llmgate/llmgate/internal/translator/openai/openairesponses"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolOpenAIResponses,
		constant.ProtocolGemini,
		compose.Request(openaicompat.ConvertOpenAIResponsesRequestToOpenAI, openai.ConvertOpenAIRequestToGemini),
		translator.ResponseTransform{
			Stream:    compose.Stream(openai.ConvertGeminiResponseToOpenAI, openaicompat.ConvertOpenAIResponseToOpenAIResponses),
			NonStream: compose.NonStream(openai.ConvertGeminiResponseToOpenAINonStream, openaicompat.ConvertOpenAIResponseToOpenAIResponsesNonStream),
			ModelList: modellist.Transform(constant.ProtocolOpenAIResponses, constant.ProtocolGemini),
		},
	)
}
