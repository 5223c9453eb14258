// Package translator maintains the conversion matrix between wire protocols.
// Each ordered pair (from, to) of protocol prefixes registers a request
// transform, a streaming and non-streaming response transform, and a model
// list transform. Lookups fall back to the identity when no entry exists.
package translator

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// RequestTransform converts a request payload from one protocol to another.
type RequestTransform func(model string, rawJSON []byte, stream bool) []byte

// StreamTransform converts one upstream chunk into zero or more client
// events. The param pointer carries per-stream accumulator state.
type StreamTransform func(ctx context.Context, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string

// NonStreamTransform converts a complete upstream response body.
type NonStreamTransform func(ctx context.Context, model string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string

// ModelListTransform converts a backend model list into the caller's format.
type ModelListTransform func(rawJSON []byte) []byte

// ResponseTransform groups the response-direction transforms for a pair.
type ResponseTransform struct {
	Stream    StreamTransform
	NonStream NonStreamTransform
	ModelList ModelListTransform
}

var (
	requests  = make(map[string]map[string]RequestTransform)
	responses = make(map[string]map[string]ResponseTransform)
)

// Register installs the transforms for the ordered pair (from, to).
func Register(from, to string, request RequestTransform, response ResponseTransform) {
	log.Debugf("registering translator from %s to %s", from, to)
	if _, ok := requests[from]; !ok {
		requests[from] = make(map[string]RequestTransform)
	}
	requests[from][to] = request

	if _, ok := responses[from]; !ok {
		responses[from] = make(map[string]ResponseTransform)
	}
	responses[from][to] = response
}

// NeedConvert reports whether a conversion is registered for the pair.
func NeedConvert(from, to string) bool {
	_, ok := responses[from][to]
	return ok
}

// Request translates a request payload, or returns it unchanged when the
// pair has no registered transform.
func Request(from, to, modelName string, rawJSON []byte, stream bool) []byte {
	if transform, ok := requests[from][to]; ok {
		return transform(modelName, rawJSON, stream)
	}
	return rawJSON
}

// Response translates one streaming chunk back into the caller's protocol.
func Response(from, to string, ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) []string {
	if transform, ok := responses[from][to]; ok && transform.Stream != nil {
		return transform.Stream(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, param)
	}
	return []string{string(rawJSON)}
}

// ResponseNonStream translates a complete response body.
func ResponseNonStream(from, to string, ctx context.Context, modelName string, originalRequestRawJSON, requestRawJSON, rawJSON []byte, param *any) string {
	if transform, ok := responses[from][to]; ok && transform.NonStream != nil {
		return transform.NonStream(ctx, modelName, originalRequestRawJSON, requestRawJSON, rawJSON, param)
	}
	return string(rawJSON)
}

// ModelList translates a backend model list into the caller's format.
func ModelList(from, to string, rawJSON []byte) []byte {
	if transform, ok := responses[from][to]; ok && transform.ModelList != nil {
		return transform.ModelList(rawJSON)
	}
	return rawJSON
}
