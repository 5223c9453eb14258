package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llmgate/llmgate/internal/config"
	"github.com/llmgate/llmgate/internal/constant"
)

// recordingSink captures emitted health events and usage ticks.
type recordingSink struct {
	mu     sync.Mutex
	events []HealthEvent
	usage  []string
}

func (s *recordingSink) RecordHealthEvent(event HealthEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) RecordUsage(providerType, uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, providerType+"/"+uuid)
}

func (s *recordingSink) snapshot() []HealthEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HealthEvent(nil), s.events...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		ProviderPoolsFilePath: t.TempDir() + "/provider_pools.json",
	}
	cfg.SetDefaults()
	disabled := false
	cfg.Pool.AutoHealthCheckEnabled = &disabled
	return cfg
}

func healthyAccount(uuid string) *Account {
	return &Account{UUID: uuid, APIKey: "key-" + uuid, IsHealthy: true}
}

func TestSelectProviderLRUOrder(t *testing.T) {
	hourAgo := time.Now().Add(-time.Hour)
	minuteAgo := time.Now().Add(-time.Minute)

	never := healthyAccount("never")
	old := healthyAccount("old")
	old.LastUsed = &hourAgo
	recent := healthyAccount("recent")
	recent.LastUsed = &minuteAgo

	m := NewManager(testConfig(t), map[string][]*Account{
		constant.ClaudeCustom: {recent, old, never},
	}, nil, nil)
	defer m.Shutdown()

	var picked []string
	for i := 0; i < 3; i++ {
		sel := m.SelectProvider(constant.ClaudeCustom, SelectOptions{RequestedModel: "claude-sonnet-4-20250514"})
		require.NotNil(t, sel)
		picked = append(picked, sel.Account.UUID)
	}

	// Never-used first, then oldest.
	assert.Equal(t, []string{"never", "old", "recent"}, picked)
	assert.Equal(t, int64(1), never.UsageCount)
	assert.NotNil(t, never.LastUsed)
}

func TestSelectProviderUsageCountTiebreak(t *testing.T) {
	used := time.Now().Add(-time.Hour)

	busy := healthyAccount("busy")
	busy.LastUsed = &used
	busy.UsageCount = 5
	quiet := healthyAccount("quiet")
	quiet.LastUsed = &used
	quiet.UsageCount = 2

	m := NewManager(testConfig(t), map[string][]*Account{
		constant.ClaudeCustom: {busy, quiet},
	}, nil, nil)
	defer m.Shutdown()

	sel := m.SelectProvider(constant.ClaudeCustom, SelectOptions{})
	require.NotNil(t, sel)
	assert.Equal(t, "quiet", sel.Account.UUID)
}

func TestSelectProviderFilters(t *testing.T) {
	sick := healthyAccount("sick")
	sick.IsHealthy = false
	off := healthyAccount("off")
	off.IsDisabled = true
	blocked := healthyAccount("blocked")
	blocked.NotSupportedModels = []string{"claude-sonnet-4-20250514"}
	excluded := healthyAccount("excluded")
	ok := healthyAccount("ok")

	m := NewManager(testConfig(t), map[string][]*Account{
		constant.ClaudeCustom: {sick, off, blocked, excluded, ok},
	}, nil, nil)
	defer m.Shutdown()

	sel := m.SelectProvider(constant.ClaudeCustom, SelectOptions{
		RequestedModel: "claude-sonnet-4-20250514",
		ExcludeUUIDs:   []string{"excluded"},
	})
	require.NotNil(t, sel)
	assert.Equal(t, "ok", sel.Account.UUID)

	sel = m.SelectProvider(constant.ClaudeCustom, SelectOptions{
		RequestedModel: "claude-sonnet-4-20250514",
		ExcludeUUIDs:   []string{"excluded", "ok"},
	})
	assert.Nil(t, sel)
}

func TestSelectProviderSkipUsageCount(t *testing.T) {
	account := healthyAccount("probe")
	m := NewManager(testConfig(t), map[string][]*Account{
		constant.ClaudeCustom: {account},
	}, nil, nil)
	defer m.Shutdown()

	sel := m.SelectProvider(constant.ClaudeCustom, SelectOptions{SkipUsageCount: true})
	require.NotNil(t, sel)
	assert.Equal(t, int64(0), account.UsageCount)
	assert.Nil(t, account.LastUsed)
}

func TestMarkUnhealthyThreshold(t *testing.T) {
	sink := &recordingSink{}
	account := healthyAccount("flaky")
	m := NewManager(testConfig(t), map[string][]*Account{
		constant.ClaudeCustom: {account},
	}, sink, nil)
	defer m.Shutdown()

	m.MarkUnhealthy(constant.ClaudeCustom, account, "boom", 500)
	m.MarkUnhealthy(constant.ClaudeCustom, account, "boom", 500)
	assert.True(t, account.IsHealthy)
	assert.Empty(t, sink.snapshot())

	m.MarkUnhealthy(constant.ClaudeCustom, account, "boom", 500)
	assert.False(t, account.IsHealthy)
	assert.Equal(t, 3, account.ErrorCount)
	assert.Equal(t, "boom", account.LastErrorMessage)
	assert.Equal(t, 500, account.LastErrorStatusCode)
	assert.NotNil(t, account.LastUsed)

	events := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "unhealthy", events[0].EventType)
	assert.Equal(t, "flaky", events[0].ProviderUUID)
	assert.Equal(t, 500, events[0].ErrorCode)
}

func TestMarkHealthyResetsState(t *testing.T) {
	sink := &recordingSink{}
	account := healthyAccount("recovering")
	account.IsHealthy = false
	account.ErrorCount = 3
	account.UsageCount = 42
	account.QuickRetryCount = 2
	account.HealthCheckScheduleType = ScheduleStandard

	m := NewManager(testConfig(t), map[string][]*Account{
		constant.ClaudeCustom: {account},
	}, sink, nil)
	defer m.Shutdown()

	m.MarkHealthy(constant.ClaudeCustom, account, "claude-3-5-haiku-20241022", true)

	assert.True(t, account.IsHealthy)
	assert.Equal(t, 0, account.ErrorCount)
	assert.Equal(t, int64(0), account.UsageCount)
	assert.Equal(t, 0, account.QuickRetryCount)
	assert.Empty(t, account.HealthCheckScheduleType)
	assert.Equal(t, "claude-3-5-haiku-20241022", account.LastHealthCheckModel)

	events := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "healthy", events[0].EventType)
}

func TestFallbackChainProtocolCompatibility(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProviderFallbackChain = map[string][]string{
		constant.ClaudeCustom: {constant.OpenAICustom, constant.ClaudeCodeCustom},
	}

	wrongProtocol := healthyAccount("openai")
	compatible := healthyAccount("claude-code")

	m := NewManager(cfg, map[string][]*Account{
		constant.ClaudeCustom:     {},
		constant.OpenAICustom:     {wrongProtocol},
		constant.ClaudeCodeCustom: {compatible},
	}, nil, nil)
	defer m.Shutdown()

	sel := m.SelectProvider(constant.ClaudeCustom, SelectOptions{RequestedModel: "claude-sonnet-4-20250514"})
	require.NotNil(t, sel)
	assert.Equal(t, constant.ClaudeCodeCustom, sel.ActualType)
	assert.True(t, sel.IsFallback)

	// The OpenAI-protocol fallback is never considered.
	assert.Equal(t, int64(0), wrongProtocol.UsageCount)
}

func TestAdapterConfigProxyResolution(t *testing.T) {
	cfg := testConfig(t)
	cfg.UseSystemProxyClaude = true
	cfg.ProxyURL = "socks5://proxy.local:1080"

	account := healthyAccount("proxied")
	m := NewManager(cfg, map[string][]*Account{constant.ClaudeCustom: {account}}, nil, nil)
	defer m.Shutdown()

	adapterCfg := m.AdapterConfig(constant.ClaudeCustom, account)
	assert.True(t, adapterCfg.UseProxy)
	assert.Equal(t, "socks5://proxy.local:1080", adapterCfg.ProxyURL)

	account.ProxyURL = "socks5://account.local:1080"
	adapterCfg = m.AdapterConfig(constant.ClaudeCustom, account)
	assert.Equal(t, "socks5://account.local:1080", adapterCfg.ProxyURL)
}
