package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmgate/llmgate/internal/adapter"
	"github.com/llmgate/llmgate/internal/config"
	"github.com/llmgate/llmgate/internal/constant"
)

// stubProbe fails until healed is flipped, counting every call.
type stubProbe struct {
	calls  atomic.Int64
	healed atomic.Bool
	status int
}

func (p *stubProbe) fn() ProbeFunc {
	return func(_ context.Context, _ adapter.Config, _ string) *adapter.ErrorMessage {
		p.calls.Add(1)
		if p.healed.Load() {
			return nil
		}
		return &adapter.ErrorMessage{StatusCode: p.status, Error: assert.AnError}
	}
}

func recoveryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		ProviderPoolsFilePath: t.TempDir() + "/provider_pools.json",
	}
	cfg.SetDefaults()
	cfg.Pool.MaxErrorCount = 1
	cfg.Pool.QuickRetryIntervalMs = 20
	cfg.Pool.QuickRetryMaxCount = 2
	cfg.Pool.StandardHealthCheckIntervalMs = 30
	cfg.Pool.RateLimitHealthCheckIntervalMs = 25
	return cfg
}

func (m *Manager) scheduleTypeOf(account *Account) string {
	m.lock()
	defer m.unlock()
	return account.HealthCheckScheduleType
}

func (m *Manager) healthyOf(account *Account) bool {
	m.lock()
	defer m.unlock()
	return account.IsHealthy
}

func TestRecoverySchedulerQuickRetryThenStandard(t *testing.T) {
	probe := &stubProbe{status: 500}
	account := healthyAccount("flaky")
	m := NewManager(recoveryConfig(t), map[string][]*Account{
		constant.ClaudeCustom: {account},
	}, nil, probe.fn())
	defer m.Shutdown()

	m.MarkUnhealthy(constant.ClaudeCustom, account, "boom", 500)
	assert.Equal(t, ScheduleQuickRetry, m.scheduleTypeOf(account))

	// Two failing quick retries exhaust the quota and demote the cadence.
	require.Eventually(t, func() bool {
		return m.scheduleTypeOf(account) == ScheduleStandard
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, probe.calls.Load(), int64(2))

	// Once the upstream heals, the next standard probe restores the account
	// with its usage counter reset.
	account.UsageCount = 9
	probe.healed.Store(true)
	require.Eventually(t, func() bool {
		return m.healthyOf(account)
	}, 2*time.Second, 5*time.Millisecond)

	m.lock()
	assert.Equal(t, int64(0), account.UsageCount)
	assert.Equal(t, 0, account.QuickRetryCount)
	m.unlock()
}

func TestRecoverySchedulerRateLimitSkipsQuickRetry(t *testing.T) {
	probe := &stubProbe{status: 429}
	account := healthyAccount("limited")
	m := NewManager(recoveryConfig(t), map[string][]*Account{
		constant.ClaudeCustom: {account},
	}, nil, probe.fn())
	defer m.Shutdown()

	m.MarkUnhealthy(constant.ClaudeCustom, account, "quota exceeded", 429)

	m.lock()
	assert.Equal(t, ScheduleRateLimit, account.HealthCheckScheduleType)
	assert.Equal(t, 0, account.QuickRetryCount)
	m.unlock()
}

func TestSweepSkipsOptedOutAccounts(t *testing.T) {
	probe := &stubProbe{status: 500}
	account := healthyAccount("opted-out")
	account.CheckHealth = false
	account.ErrorCount = 2

	m := NewManager(recoveryConfig(t), map[string][]*Account{
		constant.ClaudeCustom: {account},
	}, nil, probe.fn())
	defer m.Shutdown()

	m.sweep(context.Background())

	// No probe fired; error counters cleared, health untouched.
	assert.Equal(t, int64(0), probe.calls.Load())
	m.lock()
	assert.True(t, account.IsHealthy)
	assert.Equal(t, 0, account.ErrorCount)
	m.unlock()
}

func TestSweepMarksFailingAccounts(t *testing.T) {
	probe := &stubProbe{status: 500}
	account := healthyAccount("checked")
	account.CheckHealth = true
	account.CheckModelName = "claude-3-5-haiku-20241022"

	cfg := recoveryConfig(t)
	disabled := false
	cfg.Pool.AutoHealthCheckEnabled = &disabled

	m := NewManager(cfg, map[string][]*Account{
		constant.ClaudeCustom: {account},
	}, nil, probe.fn())
	defer m.Shutdown()

	m.sweep(context.Background())

	assert.Equal(t, int64(1), probe.calls.Load())
	m.lock()
	assert.False(t, account.IsHealthy)
	m.unlock()
}
