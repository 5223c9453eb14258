// Package adapter implements the per-provider upstream clients behind a
// uniform contract. Requests and responses cross this boundary in the
// provider's native protocol shape; translation is the caller's duty.
//
// Streaming calls deliver bare SSE data payloads on the chunk channel and
// always finish with a literal "[DONE]" chunk, regardless of whether the
// upstream protocol uses that sentinel.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// ErrorMessage carries an upstream failure together with the HTTP status
// code that produced it, when one exists.
type ErrorMessage struct {
	StatusCode int
	Error      error
}

func (e *ErrorMessage) String() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("status %d: %v", e.StatusCode, e.Error)
}

// NewErrorMessage wraps an error without an HTTP status.
func NewErrorMessage(err error) *ErrorMessage {
	return &ErrorMessage{StatusCode: 0, Error: err}
}

// Adapter is the uniform upstream client contract.
type Adapter interface {
	// Type reports the provider type this adapter serves.
	Type() string

	// Generate performs a non-streaming completion call.
	Generate(ctx context.Context, modelName string, rawJSON []byte) ([]byte, *ErrorMessage)

	// Stream performs a streaming completion call. The chunk channel closes
	// after the terminal "[DONE]" chunk; at most one error is sent.
	Stream(ctx context.Context, modelName string, rawJSON []byte) (<-chan []byte, <-chan *ErrorMessage)

	// ListModels returns the upstream model list body in native shape.
	ListModels(ctx context.Context) ([]byte, *ErrorMessage)

	// Refresh forces a credential refresh where the provider supports one.
	Refresh(ctx context.Context) error
}

// ModelQuota describes remaining capacity for one model.
type ModelQuota struct {
	Remaining        float64   `json:"remaining"`
	ResetTime        time.Time `json:"resetTime,omitempty"`
	ResetTimeRaw     string    `json:"resetTimeRaw,omitempty"`
	InputTokenLimit  int64     `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit int64     `json:"outputTokenLimit,omitempty"`
}

// UsageLimits is the quota snapshot returned by providers that expose one.
type UsageLimits struct {
	LastUpdated time.Time             `json:"lastUpdated"`
	Models      map[string]ModelQuota `json:"models"`
}

// UsageLimiter is implemented by the adapters whose upstream has a quota
// endpoint.
type UsageLimiter interface {
	GetUsageLimits(ctx context.Context) (*UsageLimits, error)
}

// Config is the account material an adapter is built from.
type Config struct {
	Type     string
	UUID     string
	BaseURL  string
	APIKey   string
	ProxyURL string
	UseProxy bool

	// Gemini code-assist credential sources, in priority order.
	CredsBase64 string
	CredsFile   string
	ProjectID   string

	NotSupportedModels []string
}
