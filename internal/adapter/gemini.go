package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	auth "github.com/llmgate/llmgate/internal/auth/gemini"
	"github.com/llmgate/llmgate/internal/registry"
	"github.com/llmgate/llmgate/internal/sse"
	"github.com/llmgate/llmgate/internal/util"
)

const (
	codeAssistBaseURL = "https://cloudcode-pa.googleapis.com"

	// Continuation instruction appended when an anti-truncation stream stops
	// at the token limit.
	continuePrompt = "Please continue from where you left off."

	onboardPollInterval = 2 * time.Second
	onboardMaxAttempts  = 30
)

// geminiAdapter serves gemini-cli-oauth and gemini-antigravity accounts over
// the code-assist API: POST {base}/v1internal:{method} with a {model,
// project, request} envelope, streaming via alt=sse.
type geminiAdapter struct {
	cfg        Config
	t          *transport
	pluginType string
	nearWindow time.Duration

	mu        sync.Mutex
	creds     *auth.Credentials
	projectID string
}

// NewGeminiAdapter builds the code-assist client for gemini-cli-oauth
// accounts.
func NewGeminiAdapter(cfg Config, maxRetries int, baseDelay, nearWindow time.Duration) Adapter {
	return newGeminiAdapter(cfg, maxRetries, baseDelay, nearWindow, "GEMINI")
}

// NewAntigravityAdapter builds the code-assist client for gemini-antigravity
// accounts; the wire protocol is identical, only the plugin identity and
// quota tiers differ upstream.
func NewAntigravityAdapter(cfg Config, maxRetries int, baseDelay, nearWindow time.Duration) Adapter {
	return newGeminiAdapter(cfg, maxRetries, baseDelay, nearWindow, "ANTIGRAVITY")
}

func newGeminiAdapter(cfg Config, maxRetries int, baseDelay, nearWindow time.Duration, pluginType string) *geminiAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = codeAssistBaseURL
	}
	a := &geminiAdapter{
		cfg:        cfg,
		pluginType: pluginType,
		nearWindow: nearWindow,
		projectID:  cfg.ProjectID,
	}
	a.t = newTransport(cfg, maxRetries, baseDelay, a.refreshToken)
	return a
}

func (a *geminiAdapter) Type() string { return a.cfg.Type }

// ensureCredentials authenticates on first use: inline blob, then token
// file, then the interactive browser flow polled through the token file.
func (a *geminiAdapter) ensureCredentials(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.creds != nil {
		return nil
	}

	var creds *auth.Credentials
	var err error
	switch {
	case a.cfg.CredsBase64 != "":
		creds, err = auth.Decode(a.cfg.CredsBase64)
	case a.cfg.CredsFile != "":
		creds, err = auth.Load(a.cfg.CredsFile)
		if err != nil {
			creds, err = auth.WaitForBrowserFlow(ctx, auth.AuthURL(uuid.NewString()), a.cfg.CredsFile)
		}
	default:
		err = fmt.Errorf("no credential source configured")
	}
	if err != nil {
		return fmt.Errorf("gemini credentials: %w", err)
	}
	a.creds = creds
	if a.projectID == "" {
		a.projectID = creds.ProjectID
	}
	return nil
}

func (a *geminiAdapter) refreshToken(ctx context.Context) error {
	if err := a.ensureCredentials(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := auth.RefreshCredentials(ctx, a.creds, a.t.client); err != nil {
		return err
	}
	if a.cfg.CredsFile != "" {
		if err := a.creds.Save(a.cfg.CredsFile); err != nil {
			log.Warnf("could not persist refreshed credentials: %v", err)
		}
	}
	return nil
}

// Refresh forces a token refresh regardless of expiry.
func (a *geminiAdapter) Refresh(ctx context.Context) error {
	return a.refreshToken(ctx)
}

// accessToken returns a valid bearer token, refreshing when the expiry is
// within the near window.
func (a *geminiAdapter) accessToken(ctx context.Context) (string, error) {
	if err := a.ensureCredentials(ctx); err != nil {
		return "", err
	}
	a.mu.Lock()
	near := a.creds.IsExpiryDateNear(a.nearWindow)
	a.mu.Unlock()
	if near {
		if err := a.refreshToken(ctx); err != nil {
			return "", err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.creds.AccessToken, nil
}

// ensureProject resolves the code-assist project id, onboarding the user
// when the backend has not assigned one yet.
func (a *geminiAdapter) ensureProject(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.projectID != "" {
		project := a.projectID
		a.mu.Unlock()
		return project, nil
	}
	a.mu.Unlock()

	body, _ := json.Marshal(map[string]any{
		"metadata": a.clientMetadata(),
	})
	payload, errMsg := a.call(ctx, "loadCodeAssist", body, false)
	if errMsg != nil {
		return "", fmt.Errorf("loadCodeAssist: %w", errMsg.Error)
	}

	root := gjson.ParseBytes(payload)
	if project := root.Get("cloudaicompanionProject").String(); project != "" {
		a.setProject(project)
		return project, nil
	}

	tierID := "free-tier"
	root.Get("allowedTiers").ForEach(func(_, tier gjson.Result) bool {
		if tier.Get("isDefault").Bool() {
			tierID = tier.Get("id").String()
			return false
		}
		return true
	})

	onboardBody, _ := json.Marshal(map[string]any{
		"tierId":   tierID,
		"metadata": a.clientMetadata(),
	})
	for attempt := 0; attempt < onboardMaxAttempts; attempt++ {
		payload, errMsg = a.call(ctx, "onboardUser", onboardBody, false)
		if errMsg != nil {
			return "", fmt.Errorf("onboardUser: %w", errMsg.Error)
		}
		op := gjson.ParseBytes(payload)
		if op.Get("done").Bool() {
			project := op.Get("response.cloudaicompanionProject.id").String()
			if project == "" {
				return "", fmt.Errorf("onboarding finished without a project id")
			}
			a.setProject(project)
			return project, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(onboardPollInterval):
		}
	}
	return "", fmt.Errorf("onboarding did not complete after %d attempts", onboardMaxAttempts)
}

func (a *geminiAdapter) setProject(project string) {
	a.mu.Lock()
	a.projectID = project
	a.mu.Unlock()
}

func (a *geminiAdapter) clientMetadata() map[string]any {
	return map[string]any{
		"ideType":    "IDE_UNSPECIFIED",
		"platform":   "PLATFORM_UNSPECIFIED",
		"pluginType": a.pluginType,
	}
}

// call performs one v1internal method invocation through the retrying
// transport.
func (a *geminiAdapter) call(ctx context.Context, method string, body []byte, stream bool) ([]byte, *ErrorMessage) {
	resp, errMsg := a.open(ctx, method, body, stream)
	if errMsg != nil {
		return nil, errMsg
	}
	defer func() { _ = resp.Body.Close() }()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewErrorMessage(fmt.Errorf("read response: %w", err))
	}
	return payload, nil
}

func (a *geminiAdapter) open(ctx context.Context, method string, body []byte, stream bool) (*http.Response, *ErrorMessage) {
	return a.t.do(ctx, func(ctx context.Context) (*http.Request, error) {
		token, err := a.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		url := a.cfg.BaseURL + "/v1internal:" + method
		if stream {
			url += "?alt=sse"
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		if stream {
			req.Header.Set("Accept", "text/event-stream")
		}
		return req, nil
	})
}

// envelope wraps a native Gemini request into the code-assist form after
// role normalization.
func (a *geminiAdapter) envelope(ctx context.Context, modelName string, rawJSON []byte) ([]byte, error) {
	project, err := a.ensureProject(ctx)
	if err != nil {
		return nil, err
	}
	request := normalizeRoles(rawJSON)
	body := "{}"
	body, _ = sjson.Set(body, "model", registry.BaseModel(modelName))
	body, _ = sjson.Set(body, "project", project)
	body, _ = sjson.SetRaw(body, "request", string(request))
	return []byte(body), nil
}

func (a *geminiAdapter) Generate(ctx context.Context, modelName string, rawJSON []byte) ([]byte, *ErrorMessage) {
	body, err := a.envelope(ctx, modelName, rawJSON)
	if err != nil {
		return nil, NewErrorMessage(err)
	}
	return a.call(ctx, "generateContent", body, false)
}

func (a *geminiAdapter) Stream(ctx context.Context, modelName string, rawJSON []byte) (<-chan []byte, <-chan *ErrorMessage) {
	out := make(chan []byte, 16)
	errs := make(chan *ErrorMessage, 1)

	if registry.IsAntiTruncation(modelName) {
		go a.streamAntiTruncation(ctx, modelName, rawJSON, out, errs)
		return out, errs
	}

	body, err := a.envelope(ctx, modelName, rawJSON)
	if err != nil {
		errs <- NewErrorMessage(err)
		close(out)
		close(errs)
		return out, errs
	}
	resp, errMsg := a.open(ctx, "streamGenerateContent", body, true)
	if errMsg != nil {
		errs <- errMsg
		close(out)
		close(errs)
		return out, errs
	}
	go pumpSSE(ctx, resp, out, errs)
	return out, errs
}

// streamAntiTruncation reissues the stream with a continuation turn for as
// long as the upstream stops at MAX_TOKENS, keeping the original contents as
// the base each round.
func (a *geminiAdapter) streamAntiTruncation(ctx context.Context, modelName string, rawJSON []byte, out chan<- []byte, errs chan<- *ErrorMessage) {
	defer close(out)
	defer close(errs)

	var continuation []string

	for {
		request := rawJSON
		for _, text := range continuation {
			assistant, _ := json.Marshal(map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}})
			user, _ := json.Marshal(map[string]any{"role": "user", "parts": []any{map[string]any{"text": continuePrompt}}})
			updated, _ := sjson.SetRawBytes(request, "contents.-1", assistant)
			updated, _ = sjson.SetRawBytes(updated, "contents.-1", user)
			request = updated
		}

		body, err := a.envelope(ctx, modelName, request)
		if err != nil {
			errs <- NewErrorMessage(err)
			return
		}
		resp, errMsg := a.open(ctx, "streamGenerateContent", body, true)
		if errMsg != nil {
			errs <- errMsg
			return
		}

		truncated, text, errMsg := a.relayRound(ctx, resp, out)
		if errMsg != nil {
			errs <- errMsg
			return
		}
		if !truncated || text == "" {
			break
		}
		log.Debugf("anti-truncation: continuing %s after MAX_TOKENS (%d chars so far)", modelName, len(text))
		continuation = append(continuation, text)
	}

	select {
	case out <- []byte("[DONE]"):
	case <-ctx.Done():
	}
}

// relayRound forwards one streaming round to out (without the terminal
// sentinel) and reports whether it ended at MAX_TOKENS and the text it
// generated.
func (a *geminiAdapter) relayRound(ctx context.Context, resp *http.Response, out chan<- []byte) (bool, string, *ErrorMessage) {
	defer func() { _ = resp.Body.Close() }()

	decoder := sse.NewDecoder(resp.Body)
	truncated := false
	var text strings.Builder

	for {
		payload, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return false, "", NewErrorMessage(ctx.Err())
			}
			return false, "", NewErrorMessage(fmt.Errorf("read stream: %w", err))
		}
		if len(payload) == 0 || string(payload) == "[DONE]" {
			continue
		}

		root := gjson.ParseBytes(payload)
		if wrapped := root.Get("response"); wrapped.Exists() {
			root = wrapped
		}
		root.Get("candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
			if t := part.Get("text"); t.Exists() && !part.Get("thought").Bool() {
				text.WriteString(t.String())
			}
			return true
		})
		truncated = root.Get("candidates.0.finishReason").String() == "MAX_TOKENS"

		select {
		case out <- payload:
		case <-ctx.Done():
			return false, "", NewErrorMessage(ctx.Err())
		}
	}
	return truncated, text.String(), nil
}

// ListModels synthesizes the Gemini model list from the static catalogue;
// code-assist has no public models endpoint.
func (a *geminiAdapter) ListModels(_ context.Context) ([]byte, *ErrorMessage) {
	models := "[]"
	for _, info := range registry.ModelsForType(a.cfg.Type) {
		if util.InArray(a.cfg.NotSupportedModels, info.ID) {
			continue
		}
		entry := "{}"
		entry, _ = sjson.Set(entry, "name", "models/"+info.ID)
		entry, _ = sjson.Set(entry, "displayName", info.DisplayName)
		entry, _ = sjson.Set(entry, "supportedGenerationMethods", []string{"generateContent", "streamGenerateContent"})
		models, _ = sjson.SetRaw(models, "-1", entry)
	}
	body, _ := sjson.SetRaw("{}", "models", models)
	return []byte(body), nil
}

// GetUsageLimits queries retrieveUserQuota and normalizes it to the common
// shape: unsupported models filtered, models missing upstream filled in with
// full remaining quota.
func (a *geminiAdapter) GetUsageLimits(ctx context.Context) (*UsageLimits, error) {
	project, err := a.ensureProject(ctx)
	if err != nil {
		return nil, err
	}
	body, _ := json.Marshal(map[string]any{"project": project, "metadata": a.clientMetadata()})
	limits := &UsageLimits{LastUpdated: time.Now(), Models: make(map[string]ModelQuota)}

	payload, errMsg := a.call(ctx, "retrieveUserQuota", body, false)
	if errMsg == nil {
		gjson.ParseBytes(payload).Get("modelQuotas").ForEach(func(_, entry gjson.Result) bool {
			model := entry.Get("model").String()
			if model == "" || util.InArray(a.cfg.NotSupportedModels, model) {
				return true
			}
			quota := ModelQuota{Remaining: entry.Get("remainingFraction").Float()}
			if raw := entry.Get("resetTime").String(); raw != "" {
				quota.ResetTimeRaw = raw
				if reset, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
					quota.ResetTime = reset
				}
			}
			quota.InputTokenLimit = entry.Get("inputTokenLimit").Int()
			quota.OutputTokenLimit = entry.Get("outputTokenLimit").Int()
			limits.Models[model] = quota
			return true
		})
	} else {
		log.Warnf("retrieveUserQuota failed, assuming full quota: %v", errMsg.Error)
	}

	for _, info := range registry.ModelsForType(a.cfg.Type) {
		if util.InArray(a.cfg.NotSupportedModels, info.ID) {
			continue
		}
		if _, ok := limits.Models[info.ID]; !ok {
			limits.Models[info.ID] = ModelQuota{Remaining: 1}
		}
	}
	return limits, nil
}

// normalizeRoles applies the code-assist request fixups: system_instruction
// aliased to systemInstruction, a default user role on the instruction, and
// a user role on any content that lacks one.
func normalizeRoles(rawJSON []byte) []byte {
	body := string(rawJSON)
	root := gjson.Parse(body)

	if legacy := root.Get("system_instruction"); legacy.Exists() && !root.Get("systemInstruction").Exists() {
		body, _ = sjson.SetRaw(body, "systemInstruction", legacy.Raw)
		body, _ = sjson.Delete(body, "system_instruction")
		root = gjson.Parse(body)
	}
	if instruction := root.Get("systemInstruction"); instruction.Exists() && instruction.Get("role").String() == "" {
		body, _ = sjson.Set(body, "systemInstruction.role", "user")
		root = gjson.Parse(body)
	}
	root.Get("contents").ForEach(func(key, content gjson.Result) bool {
		if content.Get("role").String() == "" {
			body, _ = sjson.Set(body, "contents."+key.String()+".role", "user")
		}
		return true
	})
	return []byte(body)
}
