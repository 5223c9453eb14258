package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/llmgate/llmgate/internal/constant"
)

func TestClaudeAdapterGenerate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "claude-sonnet-4-20250514", gjson.GetBytes(body, "model").String())
		assert.False(t, gjson.GetBytes(body, "stream").Bool())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message"}`))
	}))
	defer ts.Close()

	a := NewClaudeAdapter(Config{Type: constant.ClaudeCustom, UUID: "u1", BaseURL: ts.URL, APIKey: "sk-test"}, 0, time.Millisecond)

	payload, errMsg := a.Generate(context.Background(), "claude-sonnet-4-20250514", []byte(`{"messages":[]}`))
	require.Nil(t, errMsg)
	assert.Equal(t, "msg_1", gjson.GetBytes(payload, "id").String())
}

func TestRestAdapterStreamAppendsSentinel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		body, _ := io.ReadAll(r.Body)
		assert.True(t, gjson.GetBytes(body, "stream").Bool())

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"a\":1}\n\ndata: {\"b\":2}\n\ndata: [DONE]\n\n")
	}))
	defer ts.Close()

	a := NewOpenAIAdapter(Config{Type: constant.OpenAICustom, UUID: "u1", BaseURL: ts.URL, APIKey: "sk"}, 0, time.Millisecond)

	chunks, errs := a.Stream(context.Background(), "gpt-5", []byte(`{"messages":[]}`))
	var got []string
	for chunk := range chunks {
		got = append(got, string(chunk))
	}
	require.Nil(t, <-errs)

	// Upstream [DONE] is swallowed; the adapter appends its own sentinel.
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`, "[DONE]"}, got)
}

func TestTransportRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	a := NewOpenAIAdapter(Config{Type: constant.OpenAICustom, UUID: "u1", BaseURL: ts.URL, APIKey: "sk"}, 2, time.Millisecond)

	payload, errMsg := a.Generate(context.Background(), "gpt-5", []byte(`{"messages":[]}`))
	require.Nil(t, errMsg)
	assert.True(t, gjson.GetBytes(payload, "ok").Bool())
	assert.Equal(t, int64(2), calls.Load())
}

func TestTransportExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	a := NewOpenAIAdapter(Config{Type: constant.OpenAICustom, UUID: "u1", BaseURL: ts.URL, APIKey: "sk"}, 1, time.Millisecond)

	_, errMsg := a.Generate(context.Background(), "gpt-5", []byte(`{"messages":[]}`))
	require.NotNil(t, errMsg)
	assert.Equal(t, http.StatusTooManyRequests, errMsg.StatusCode)
	assert.Equal(t, int64(2), calls.Load())
}

func TestStaticKeyUnauthorizedIsTerminal(t *testing.T) {
	var calls atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer ts.Close()

	a := NewOpenAIAdapter(Config{Type: constant.OpenAICustom, UUID: "u1", BaseURL: ts.URL, APIKey: "sk"}, 3, time.Millisecond)

	_, errMsg := a.Generate(context.Background(), "gpt-5", []byte(`{"messages":[]}`))
	require.NotNil(t, errMsg)
	assert.Equal(t, http.StatusUnauthorized, errMsg.StatusCode)
	// No credential refresh exists for static keys, so no second attempt.
	assert.Equal(t, int64(1), calls.Load())
}
