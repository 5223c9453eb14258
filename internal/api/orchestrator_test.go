package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/llmgate/llmgate/internal/adapter"
	"github.com/llmgate/llmgate/internal/config"
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/pool"

	_ "github.com/llmgate/llmgate/internal/translator"
)

func gatewayConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		ProviderPoolsFilePath: t.TempDir() + "/provider_pools.json",
	}
	cfg.SetDefaults()
	cfg.Pool.MaxErrorCount = 1
	disabled := false
	cfg.Pool.AutoHealthCheckEnabled = &disabled
	return cfg
}

func newGateway(t *testing.T, cfg *config.Config, pools map[string][]*pool.Account) (*Orchestrator, *pool.Manager) {
	t.Helper()
	factory := adapter.NewFactory(0, time.Millisecond, time.Minute)
	manager := pool.NewManager(cfg, pools, nil, pool.AdapterProbe(factory))
	t.Cleanup(manager.Shutdown)
	return NewOrchestrator(cfg, manager, factory), manager
}

func TestCompleteTranslatesAcrossProtocols(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)

		// Claude system block arrives as an OpenAI system message.
		assert.Equal(t, "system", gjson.GetBytes(body, "messages.0.role").String())
		assert.Equal(t, "gpt-5", gjson.GetBytes(body, "model").String())

		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-5",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello back"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`))
	}))
	defer ts.Close()

	orchestrator, _ := newGateway(t, gatewayConfig(t), map[string][]*pool.Account{
		constant.OpenAICustom: {{UUID: "a1", BaseURL: ts.URL, APIKey: "sk", IsHealthy: true}},
	})

	claudeRequest := []byte(`{"model":"gpt-5","max_tokens":100,"system":"be nice","messages":[{"role":"user","content":"hello"}]}`)
	payload, status, err := orchestrator.Complete(context.Background(), constant.ProtocolClaude, "gpt-5", claudeRequest)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	out := gjson.ParseBytes(payload)
	assert.Equal(t, "message", out.Get("type").String())
	assert.Equal(t, "hello back", out.Get("content.0.text").String())
	assert.Equal(t, "end_turn", out.Get("stop_reason").String())
}

func TestCompleteFailsOverToNextAccount(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer working.Close()

	longAgo := time.Now().Add(-time.Hour)
	bad := &pool.Account{UUID: "bad", BaseURL: broken.URL, APIKey: "sk", IsHealthy: true}
	good := &pool.Account{UUID: "good", BaseURL: working.URL, APIKey: "sk", IsHealthy: true, LastUsed: &longAgo, UsageCount: 10}

	orchestrator, manager := newGateway(t, gatewayConfig(t), map[string][]*pool.Account{
		constant.OpenAICustom: {bad, good},
	})

	payload, status, err := orchestrator.Complete(context.Background(), constant.ProtocolOpenAI, "gpt-5",
		[]byte(`{"model":"gpt-5","messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", gjson.GetBytes(payload, "choices.0.message.content").String())

	// The failing account crossed its error threshold.
	assert.False(t, bad.IsHealthy)
	_ = manager
}

func TestCompleteNoRoute(t *testing.T) {
	orchestrator, _ := newGateway(t, gatewayConfig(t), map[string][]*pool.Account{
		constant.OpenAICustom: {{UUID: "a1", APIKey: "sk", IsHealthy: true}},
	})

	_, status, err := orchestrator.Complete(context.Background(), constant.ProtocolOpenAI, "no-such-model", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCompletePoolExhausted(t *testing.T) {
	orchestrator, _ := newGateway(t, gatewayConfig(t), map[string][]*pool.Account{
		constant.OpenAICustom: {{UUID: "a1", APIKey: "sk", IsHealthy: false}},
	})

	_, status, err := orchestrator.Complete(context.Background(), constant.ProtocolOpenAI, "gpt-5", []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestMergeModelListsDeduplicates(t *testing.T) {
	bodies := [][]byte{
		[]byte(`{"object":"list","data":[{"id":"gpt-5","object":"model"},{"id":"gpt-5-minimal","object":"model"}]}`),
		[]byte(`{"object":"list","data":[{"id":"gpt-5","object":"model"},{"id":"codex-mini-latest","object":"model"}]}`),
	}

	merged, err := mergeModelLists(constant.ProtocolOpenAI, bodies)
	require.NoError(t, err)

	entries := gjson.GetBytes(merged, "data").Array()
	require.Len(t, entries, 3)
	assert.Equal(t, "list", gjson.GetBytes(merged, "object").String())
}

func TestPassthroughFrame(t *testing.T) {
	assert.Equal(t, "data: {\"a\":1}\n\n", passthroughFrame(constant.ProtocolOpenAI, []byte(`{"a":1}`)))
	assert.Equal(t, "data: [DONE]\n\n", passthroughFrame(constant.ProtocolOpenAI, []byte("[DONE]")))

	// Claude passthrough restores the named-event frame and drops the
	// OpenAI-style sentinel.
	assert.Equal(t, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
		passthroughFrame(constant.ProtocolClaude, []byte(`{"type":"message_stop"}`)))
	assert.Empty(t, passthroughFrame(constant.ProtocolClaude, []byte("[DONE]")))
}
