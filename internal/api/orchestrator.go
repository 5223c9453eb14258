// Package api carries the HTTP front-end and the thin orchestrator gluing
// it to the pool manager, converter matrix and adapter factory.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/llmgate/llmgate/internal/adapter"
	"github.com/llmgate/llmgate/internal/config"
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/pool"
	"github.com/llmgate/llmgate/internal/registry"
	"github.com/llmgate/llmgate/internal/translator/translator"
)

// StreamError is delivered at most once on a stream's error channel.
type StreamError struct {
	StatusCode int
	Err        error
}

// Orchestrator routes one request: pick an account, translate the request
// into the account's protocol, invoke the adapter, translate the result
// back. Failures feed the pool manager and trigger re-selection.
type Orchestrator struct {
	mu      sync.RWMutex
	cfg     *config.Config
	manager *pool.Manager
	factory *adapter.Factory
}

// NewOrchestrator wires the orchestrator over its collaborators.
func NewOrchestrator(cfg *config.Config, manager *pool.Manager, factory *adapter.Factory) *Orchestrator {
	return &Orchestrator{cfg: cfg, manager: manager, factory: factory}
}

// UpdateConfig swaps tunables on hot reload.
func (o *Orchestrator) UpdateConfig(cfg *config.Config) {
	o.mu.Lock()
	o.cfg = cfg
	o.mu.Unlock()
}

func (o *Orchestrator) config() *config.Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cfg
}

// routeType resolves the provider type serving a model: the first type with
// a pool whose catalogue claims the model.
func (o *Orchestrator) routeType(modelName string) (string, error) {
	for _, providerType := range o.manager.ProviderTypes() {
		if registry.TypeSupportsModel(providerType, modelName) {
			return providerType, nil
		}
	}
	return "", fmt.Errorf("no provider type serves model %q", modelName)
}

// Complete handles a non-streaming request end to end. The returned status
// code is meaningful only when err is non-nil.
func (o *Orchestrator) Complete(ctx context.Context, sourceProtocol, modelName string, rawJSON []byte) ([]byte, int, error) {
	providerType, err := o.routeType(modelName)
	if err != nil {
		return nil, http.StatusNotFound, err
	}

	cfg := o.config()
	var exclude []string
	var lastErr *adapter.ErrorMessage

	for attempt := 0; attempt <= cfg.RequestMaxRetries; attempt++ {
		sel := o.manager.SelectProvider(providerType, pool.SelectOptions{
			RequestedModel: modelName,
			ExcludeUUIDs:   exclude,
		})
		if sel == nil {
			break
		}

		backendProtocol := constant.ProtocolForType(sel.ActualType)
		request := translator.Request(sourceProtocol, backendProtocol, modelName, rawJSON, false)

		a, err := o.factory.Get(o.manager.AdapterConfig(sel.ActualType, sel.Account))
		if err != nil {
			return nil, http.StatusInternalServerError, err
		}

		payload, errMsg := a.Generate(ctx, modelName, request)
		if errMsg != nil {
			if ctx.Err() != nil {
				return nil, statusOf(errMsg), ctx.Err()
			}
			o.manager.MarkUnhealthy(sel.ActualType, sel.Account, errMsg.Error.Error(), errMsg.StatusCode)
			exclude = append(exclude, sel.Account.UUID)
			lastErr = errMsg
			continue
		}

		var param any
		converted := translator.ResponseNonStream(sourceProtocol, backendProtocol, ctx, modelName, rawJSON, request, payload, &param)
		return []byte(converted), http.StatusOK, nil
	}

	if lastErr != nil {
		return nil, statusOf(lastErr), fmt.Errorf("all providers failed: %w", lastErr.Error)
	}
	return nil, http.StatusServiceUnavailable, fmt.Errorf("no healthy provider available for %q", modelName)
}

// CompleteStream handles a streaming request. Events on the output channel
// are client-ready SSE strings. Re-selection happens only until the first
// chunk is delivered; after that a failure terminates the stream.
func (o *Orchestrator) CompleteStream(ctx context.Context, sourceProtocol, modelName string, rawJSON []byte) (<-chan string, <-chan *StreamError) {
	out := make(chan string, 16)
	errs := make(chan *StreamError, 1)

	go func() {
		defer close(out)
		defer close(errs)

		providerType, err := o.routeType(modelName)
		if err != nil {
			errs <- &StreamError{StatusCode: http.StatusNotFound, Err: err}
			return
		}

		cfg := o.config()
		var exclude []string
		var lastErr *adapter.ErrorMessage

		for attempt := 0; attempt <= cfg.RequestMaxRetries; attempt++ {
			sel := o.manager.SelectProvider(providerType, pool.SelectOptions{
				RequestedModel: modelName,
				ExcludeUUIDs:   exclude,
			})
			if sel == nil {
				break
			}

			backendProtocol := constant.ProtocolForType(sel.ActualType)
			request := translator.Request(sourceProtocol, backendProtocol, modelName, rawJSON, true)

			a, err := o.factory.Get(o.manager.AdapterConfig(sel.ActualType, sel.Account))
			if err != nil {
				errs <- &StreamError{StatusCode: http.StatusInternalServerError, Err: err}
				return
			}

			delivered, errMsg := o.relayStream(ctx, a, sourceProtocol, backendProtocol, modelName, rawJSON, request, out)
			if errMsg == nil {
				return
			}
			if ctx.Err() != nil {
				// Cancellation is not a provider failure.
				return
			}
			o.manager.MarkUnhealthy(sel.ActualType, sel.Account, errMsg.Error.Error(), errMsg.StatusCode)
			if delivered {
				errs <- &StreamError{StatusCode: statusOf(errMsg), Err: errMsg.Error}
				return
			}
			exclude = append(exclude, sel.Account.UUID)
			lastErr = errMsg
		}

		if lastErr != nil {
			errs <- &StreamError{StatusCode: statusOf(lastErr), Err: fmt.Errorf("all providers failed: %w", lastErr.Error)}
			return
		}
		errs <- &StreamError{StatusCode: http.StatusServiceUnavailable, Err: fmt.Errorf("no healthy provider available for %q", modelName)}
	}()

	return out, errs
}

// relayStream runs one upstream streaming call, converting each chunk into
// the caller's protocol. It reports whether any event reached the client.
func (o *Orchestrator) relayStream(ctx context.Context, a adapter.Adapter, sourceProtocol, backendProtocol, modelName string, original, request []byte, out chan<- string) (bool, *adapter.ErrorMessage) {
	chunks, errs := a.Stream(ctx, modelName, request)
	convert := translator.NeedConvert(sourceProtocol, backendProtocol)

	delivered := false
	var param any
	for chunk := range chunks {
		var events []string
		if convert {
			events = translator.Response(sourceProtocol, backendProtocol, ctx, modelName, original, request, chunk, &param)
		} else if frame := passthroughFrame(sourceProtocol, chunk); frame != "" {
			events = []string{frame}
		}
		for _, event := range events {
			select {
			case out <- event:
				delivered = true
			case <-ctx.Done():
				return delivered, adapter.NewErrorMessage(ctx.Err())
			}
		}
	}
	if errMsg := <-errs; errMsg != nil {
		return delivered, errMsg
	}
	return delivered, nil
}

// passthroughFrame restores SSE framing for same-protocol streams. Claude
// and Responses clients expect named events; the name comes back from the
// payload's type field.
func passthroughFrame(protocol string, chunk []byte) string {
	payload := string(chunk)
	if payload == "[DONE]" {
		switch protocol {
		case constant.ProtocolOpenAI, constant.ProtocolGemini:
			return "data: [DONE]\n\n"
		default:
			return ""
		}
	}
	switch protocol {
	case constant.ProtocolClaude, constant.ProtocolOpenAIResponses:
		if eventType := gjson.GetBytes(chunk, "type").String(); eventType != "" {
			return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload)
		}
	}
	return fmt.Sprintf("data: %s\n\n", payload)
}

// ListModels merges the model lists of every type that has accounts,
// converted into the caller's protocol.
func (o *Orchestrator) ListModels(ctx context.Context, sourceProtocol string) ([]byte, error) {
	var bodies [][]byte
	for _, providerType := range o.manager.ProviderTypes() {
		sel := o.manager.SelectProvider(providerType, pool.SelectOptions{SkipUsageCount: true})
		if sel == nil {
			continue
		}
		a, err := o.factory.Get(o.manager.AdapterConfig(sel.ActualType, sel.Account))
		if err != nil {
			continue
		}
		payload, errMsg := a.ListModels(ctx)
		if errMsg != nil {
			log.Warnf("list models failed for %s: %v", providerType, errMsg.Error)
			continue
		}
		backendProtocol := constant.ProtocolForType(sel.ActualType)
		bodies = append(bodies, translator.ModelList(sourceProtocol, backendProtocol, payload))
	}
	return mergeModelLists(sourceProtocol, bodies)
}

// mergeModelLists concatenates converted lists under the caller protocol's
// collection key.
func mergeModelLists(protocol string, bodies [][]byte) ([]byte, error) {
	key := "data"
	out := `{"object":"list","data":[]}`
	if protocol == constant.ProtocolGemini {
		key = "models"
		out = `{"models":[]}`
	}

	seen := make(map[string]bool)
	for _, body := range bodies {
		gjson.GetBytes(body, key).ForEach(func(_, entry gjson.Result) bool {
			id := entry.Get("id").String()
			if id == "" {
				id = entry.Get("name").String()
			}
			if id != "" && seen[id] {
				return true
			}
			seen[id] = true
			out, _ = sjson.SetRaw(out, key+".-1", entry.Raw)
			return true
		})
	}
	if !json.Valid([]byte(out)) {
		return nil, fmt.Errorf("merged model list is not valid JSON")
	}
	return []byte(out), nil
}

func statusOf(errMsg *adapter.ErrorMessage) int {
	if errMsg.StatusCode >= 400 {
		return errMsg.StatusCode
	}
	return http.StatusBadGateway
}
