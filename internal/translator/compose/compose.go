// Package compose chains two translations through the OpenAI Chat
// Completions dialect, covering frontend/backend pairs that have no direct
// converter. Each stage keeps its own accumulator so streaming state never
// crosses the dialect boundary.
package compose

import (
	"context"
	"strings"

	"github.com/llmgate/llmgate/internal/translator/translator"
)

type chainState struct {
	first  any
	second any
}

// Request chains two request transforms, feeding the intermediate dialect
// output of the first into the second.
func Request(first, second translator.RequestTransform) translator.RequestTransform {
	return func(model string, rawJSON []byte, stream bool) []byte {
		return second(model, first(model, rawJSON, stream), stream)
	}
}

// Stream chains two stream transforms. The first stage emits intermediate
// dialect SSE frames; their payloads are unframed and fed to the second.
func Stream(first, second translator.StreamTransform) translator.StreamTransform {
	return func(ctx context.Context, model string, original, request, rawJSON []byte, param *any) []string {
		if *param == nil {
			*param = &chainState{}
		}
		state := (*param).(*chainState)

		var out []string
		for _, frame := range first(ctx, model, original, request, rawJSON, &state.first) {
			payload := dataPayload(frame)
			if payload == "" {
				continue
			}
			out = append(out, second(ctx, model, original, request, []byte(payload), &state.second)...)
		}
		return out
	}
}

// NonStream chains two non-stream transforms over complete bodies.
func NonStream(first, second translator.NonStreamTransform) translator.NonStreamTransform {
	return func(ctx context.Context, model string, original, request, rawJSON []byte, _ *any) string {
		var firstState, secondState any
		intermediate := first(ctx, model, original, request, rawJSON, &firstState)
		return second(ctx, model, original, request, []byte(intermediate), &secondState)
	}
}

// dataPayload extracts the data payload from an SSE frame, joining
// continuation data lines.
func dataPayload(frame string) string {
	var parts []string
	for _, line := range strings.Split(frame, "\n") {
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			parts = append(parts, strings.TrimSpace(rest))
		}
	}
	return strings.Join(parts, "\n")
}
