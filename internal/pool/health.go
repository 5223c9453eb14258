package pool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/llmgate/llmgate/internal/adapter"
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/registry"
)

const probeTimeout = 30 * time.Second

// HealthResult reports the outcome of one probe.
type HealthResult struct {
	Success      bool
	Skipped      bool
	ModelName    string
	ErrorMessage string
	StatusCode   int
}

// ProbeFunc performs the upstream health call for an account. Injected so
// tests can stub the network.
type ProbeFunc func(ctx context.Context, cfg adapter.Config, modelName string) *adapter.ErrorMessage

// AdapterProbe is the production probe: a minimal generate call through the
// account's adapter.
func AdapterProbe(factory *adapter.Factory) ProbeFunc {
	return func(ctx context.Context, cfg adapter.Config, modelName string) *adapter.ErrorMessage {
		a, err := factory.Get(cfg)
		if err != nil {
			return adapter.NewErrorMessage(err)
		}
		_, errMsg := a.Generate(ctx, modelName, probeBody(constant.ProtocolForType(cfg.Type), modelName))
		return errMsg
	}
}

// probeBody builds the minimal native-shape request for a protocol.
func probeBody(protocol, modelName string) []byte {
	var body map[string]any
	switch protocol {
	case constant.ProtocolGemini:
		body = map[string]any{
			"contents": []any{
				map[string]any{"role": "user", "parts": []any{map[string]any{"text": "Hi"}}},
			},
			"generationConfig": map[string]any{"maxOutputTokens": 16},
		}
	case constant.ProtocolOpenAIResponses:
		body = map[string]any{
			"model": modelName,
			"input": []any{map[string]any{"role": "user", "content": "Hi"}},
		}
	case constant.ProtocolClaude:
		body = map[string]any{
			"model":      modelName,
			"max_tokens": 16,
			"messages":   []any{map[string]any{"role": "user", "content": "Hi"}},
		}
	default:
		body = map[string]any{
			"model":    modelName,
			"messages": []any{map[string]any{"role": "user", "content": "Hi"}},
		}
	}
	payload, _ := json.Marshal(body)
	return payload
}

// CheckProviderHealth probes one account. Accounts that opted out of health
// checking are skipped unless forced; a skip tells the caller to reset error
// counters without altering health.
func (m *Manager) CheckProviderHealth(ctx context.Context, providerType string, account *Account, force bool) HealthResult {
	modelName := account.CheckModelName
	if modelName == "" {
		modelName = registry.DefaultHealthCheckModel(providerType)
	}
	if !force && !account.CheckHealth {
		return HealthResult{Skipped: true, ModelName: modelName}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cfg := m.AdapterConfig(providerType, account)
	if errMsg := m.probe(ctx, cfg, modelName); errMsg != nil {
		return HealthResult{
			ModelName:    modelName,
			ErrorMessage: errMsg.Error.Error(),
			StatusCode:   errMsg.StatusCode,
		}
	}
	return HealthResult{Success: true, ModelName: modelName}
}
