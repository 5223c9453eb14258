package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"github.com/llmgate/llmgate/internal/registry"
	"github.com/llmgate/llmgate/internal/util"
)

// restAdapter serves the API-key providers. Variants differ only in base
// URL, completion path and authentication headers.
type restAdapter struct {
	cfg        Config
	t          *transport
	chatPath   string
	modelsPath string
	setHeaders func(h http.Header)
}

func (a *restAdapter) Type() string { return a.cfg.Type }

// Refresh is a no-op for static API keys; a 401 on these providers is a
// terminal credential failure.
func (a *restAdapter) Refresh(context.Context) error {
	return fmt.Errorf("%s: static credentials cannot be refreshed", a.cfg.Type)
}

func (a *restAdapter) Generate(ctx context.Context, modelName string, rawJSON []byte) ([]byte, *ErrorMessage) {
	body := a.prepareBody(modelName, rawJSON, false)
	resp, errMsg := a.t.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return a.request(ctx, http.MethodPost, a.chatPath, body)
	})
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

func (a *restAdapter) Stream(ctx context.Context, modelName string, rawJSON []byte) (<-chan []byte, <-chan *ErrorMessage) {
	out := make(chan []byte, 16)
	errs := make(chan *ErrorMessage, 1)

	body := a.prepareBody(modelName, rawJSON, true)
	resp, errMsg := a.t.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := a.request(ctx, http.MethodPost, a.chatPath, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/event-stream")
		return req, nil
	})
	if errMsg != nil {
		errs <- errMsg
		close(out)
		close(errs)
		return out, errs
	}

	go pumpSSE(ctx, resp, out, errs)
	return out, errs
}

func (a *restAdapter) ListModels(ctx context.Context) ([]byte, *ErrorMessage) {
	resp, errMsg := a.t.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return a.request(ctx, http.MethodGet, a.modelsPath, nil)
	})
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

func (a *restAdapter) prepareBody(modelName string, rawJSON []byte, stream bool) []byte {
	body := string(rawJSON)
	body, _ = sjson.Set(body, "model", registry.BaseModel(modelName))
	body, _ = sjson.Set(body, "stream", stream)
	return []byte(body)
}

func (a *restAdapter) request(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	a.setHeaders(req.Header)
	log.Debugf("%s %s%s key=%s", method, a.cfg.BaseURL, path, util.HideAPIKey(a.cfg.APIKey))
	return req, nil
}
