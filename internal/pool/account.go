// Package pool maintains the per-type provider account pools: health and
// error accounting, least-recently-used selection, fallback chains, the
// dual-policy recovery scheduler, and debounced persistence of pool state.
package pool

import (
	"time"

	"github.com/llmgate/llmgate/internal/adapter"
)

// Recovery schedule types.
const (
	ScheduleQuickRetry = "quick_retry"
	ScheduleRateLimit  = "rate_limit"
	ScheduleStandard   = "standard"
)

// Account is one upstream credential with its operational state. Timestamps
// marshal as RFC3339 strings; nil means never.
type Account struct {
	UUID string `json:"uuid"`

	// Static configuration.
	BaseURL            string   `json:"baseUrl,omitempty"`
	APIKey             string   `json:"apiKey,omitempty"`
	CredsBase64        string   `json:"credsBase64,omitempty"`
	CredsFile          string   `json:"credsFilePath,omitempty"`
	ProjectID          string   `json:"projectId,omitempty"`
	ProxyURL           string   `json:"proxyUrl,omitempty"`
	NotSupportedModels []string `json:"notSupportedModels,omitempty"`
	CheckHealth        bool     `json:"checkHealth"`
	CheckModelName     string   `json:"checkModelName,omitempty"`

	// Dynamic state.
	IsHealthy            bool       `json:"isHealthy"`
	IsDisabled           bool       `json:"isDisabled"`
	LastUsed             *time.Time `json:"lastUsed,omitempty"`
	UsageCount           int64      `json:"usageCount"`
	ErrorCount           int        `json:"errorCount"`
	LastErrorTime        *time.Time `json:"lastErrorTime,omitempty"`
	LastErrorMessage     string     `json:"lastErrorMessage,omitempty"`
	LastErrorStatusCode  int        `json:"lastErrorStatusCode,omitempty"`
	LastHealthCheckTime  *time.Time `json:"lastHealthCheckTime,omitempty"`
	LastHealthCheckModel string     `json:"lastHealthCheckModel,omitempty"`

	// Recovery state.
	QuickRetryCount          int        `json:"quickRetryCount"`
	QuickRetryPhaseStartTime *time.Time `json:"quickRetryPhaseStartTime,omitempty"`
	LastQuickRetryTime       *time.Time `json:"lastQuickRetryTime,omitempty"`
	HealthCheckScheduleType  string     `json:"healthCheckScheduleType,omitempty"`

	// recoveryTimer is the single active timer for this account, nil when
	// none is scheduled.
	recoveryTimer *time.Timer
}

// AdapterConfig maps the account onto the factory's config shape.
func (a *Account) AdapterConfig(providerType string, useProxy bool) adapter.Config {
	return adapter.Config{
		Type:               providerType,
		UUID:               a.UUID,
		BaseURL:            a.BaseURL,
		APIKey:             a.APIKey,
		CredsBase64:        a.CredsBase64,
		CredsFile:          a.CredsFile,
		ProjectID:          a.ProjectID,
		ProxyURL:           a.ProxyURL,
		UseProxy:           useProxy,
		NotSupportedModels: a.NotSupportedModels,
	}
}

// SupportsModel reports whether the account can serve the model, honoring
// the per-account not-supported list.
func (a *Account) SupportsModel(modelID string) bool {
	for _, blocked := range a.NotSupportedModels {
		if blocked == modelID {
			return false
		}
	}
	return true
}

// resetErrorState clears error and recovery fields, restoring the healthy
// invariant.
func (a *Account) resetErrorState() {
	a.ErrorCount = 0
	a.LastErrorMessage = ""
	a.LastErrorStatusCode = 0
	a.QuickRetryCount = 0
	a.QuickRetryPhaseStartTime = nil
	a.LastQuickRetryTime = nil
	a.HealthCheckScheduleType = ""
}

// cancelTimer stops and clears the recovery timer if one is armed.
func (a *Account) cancelTimer() {
	if a.recoveryTimer != nil {
		a.recoveryTimer.Stop()
		a.recoveryTimer = nil
	}
}
