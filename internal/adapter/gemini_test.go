package adapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
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

func geminiTestCreds(t *testing.T) string {
	t.Helper()
	blob, err := json.Marshal(map[string]any{
		"access_token":  "test-token",
		"refresh_token": "test-refresh",
		"expiry_date":   time.Now().Add(time.Hour).UnixMilli(),
		"project_id":    "proj-1",
	})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(blob)
}

func newTestGeminiAdapter(t *testing.T, baseURL string) Adapter {
	t.Helper()
	return NewGeminiAdapter(Config{
		Type:        constant.GeminiCLIOAuth,
		UUID:        "g1",
		BaseURL:     baseURL,
		CredsBase64: geminiTestCreds(t),
		ProjectID:   "proj-1",
	}, 0, time.Millisecond, time.Minute)
}

func TestGeminiAdapterGenerateEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1internal:generateContent", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "gemini-2.5-pro", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "proj-1", gjson.GetBytes(body, "project").String())
		// Contents without a role get the user default.
		assert.Equal(t, "user", gjson.GetBytes(body, "request.contents.0.role").String())

		_, _ = w.Write([]byte(`{"response":{"candidates":[]}}`))
	}))
	defer ts.Close()

	a := newTestGeminiAdapter(t, ts.URL)
	payload, errMsg := a.Generate(context.Background(), "gemini-2.5-pro",
		[]byte(`{"contents":[{"parts":[{"text":"hello"}]}]}`))
	require.Nil(t, errMsg)
	assert.True(t, gjson.GetBytes(payload, "response").Exists())
}

func TestGeminiAdapterStreamAntiTruncation(t *testing.T) {
	var rounds atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1internal:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		body, _ := io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "text/event-stream")
		switch rounds.Add(1) {
		case 1:
			require.Len(t, gjson.GetBytes(body, "request.contents").Array(), 1)
			_, _ = fmt.Fprint(w, "data: {\"response\":{\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"part one\"}]},\"finishReason\":\"MAX_TOKENS\"}]}}\n\n")
		default:
			// The retry carries the partial answer and the continuation turn.
			contents := gjson.GetBytes(body, "request.contents").Array()
			require.Len(t, contents, 3)
			assert.Equal(t, "model", contents[1].Get("role").String())
			assert.Equal(t, "part one", contents[1].Get("parts.0.text").String())
			assert.Equal(t, "user", contents[2].Get("role").String())
			assert.Equal(t, continuePrompt, contents[2].Get("parts.0.text").String())

			_, _ = fmt.Fprint(w, "data: {\"response\":{\"candidates\":[{\"content\":{\"parts\":[{\"text\":\" part two\"}]},\"finishReason\":\"STOP\"}]}}\n\n")
		}
	}))
	defer ts.Close()

	a := newTestGeminiAdapter(t, ts.URL)
	chunks, errs := a.Stream(context.Background(), "anti-gemini-2.5-pro",
		[]byte(`{"contents":[{"role":"user","parts":[{"text":"tell me everything"}]}]}`))

	var got []string
	for chunk := range chunks {
		got = append(got, string(chunk))
	}
	require.Nil(t, <-errs)

	assert.Equal(t, int64(2), rounds.Load())
	require.Len(t, got, 3)
	assert.Contains(t, got[0], "part one")
	assert.Contains(t, got[1], "part two")
	assert.Equal(t, "[DONE]", got[2])
}

func TestGeminiAdapterStreamPlainModelSingleRound(t *testing.T) {
	var rounds atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rounds.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"response\":{\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"hi\"}]},\"finishReason\":\"MAX_TOKENS\"}]}}\n\n")
	}))
	defer ts.Close()

	a := newTestGeminiAdapter(t, ts.URL)
	chunks, errs := a.Stream(context.Background(), "gemini-2.5-pro",
		[]byte(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`))

	var got []string
	for chunk := range chunks {
		got = append(got, string(chunk))
	}
	require.Nil(t, <-errs)

	// Without the anti- prefix a MAX_TOKENS stop is not continued.
	assert.Equal(t, int64(1), rounds.Load())
	require.Len(t, got, 2)
	assert.Equal(t, "[DONE]", got[1])
}

func TestGeminiAdapterListModels(t *testing.T) {
	a := NewGeminiAdapter(Config{
		Type:               constant.GeminiCLIOAuth,
		UUID:               "g1",
		CredsBase64:        geminiTestCreds(t),
		ProjectID:          "proj-1",
		NotSupportedModels: []string{"gemini-2.5-flash-lite"},
	}, 0, time.Millisecond, time.Minute)

	payload, errMsg := a.ListModels(context.Background())
	require.Nil(t, errMsg)

	var names []string
	gjson.GetBytes(payload, "models").ForEach(func(_, entry gjson.Result) bool {
		names = append(names, entry.Get("name").String())
		return true
	})
	assert.Contains(t, names, "models/gemini-2.5-pro")
	assert.Contains(t, names, "models/gemini-2.5-flash")
	assert.NotContains(t, names, "models/gemini-2.5-flash-lite")
}
