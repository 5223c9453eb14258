// Package gemini bridges the Gemini frontend onto OpenAI Responses backends
// through the Chat Completions dialect.
package gemini

import (
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/translator/compose"
	"github.com/llmgate/llmgate/internal/translator/modellist"
	geminicompat "github.com/llmgate/llmgate/internal/translator/openai/gemini"
	"github.com/llmgate/llmgate/internal/translator/openairesponses/openai"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

func init() {
	translator.Register(
		constant.ProtocolGemini,
		constant.ProtocolOpenAIResponses,
		compose.Request(geminicompat.ConvertGeminiRequestToOpenAI, openai.ConvertOpenAIRequestToOpenAIResponses),
		translator.ResponseTransform{
			Stream:    compose.Stream(openai.ConvertOpenAIResponsesResponseToOpenAI, geminicompat.ConvertOpenAIResponseToGemini),
			NonStream: compose.NonStream(openai.ConvertOpenAIResponsesResponseToOpenAINonStream, geminicompat.ConvertOpenAIResponseToGeminiNonStream),
			ModelList: modellist.Transform(constant.ProtocolGemini, constant.ProtocolOpenAIResponses),
		},
	)
}
