package pool

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/llmgate/llmgate/internal/adapter"
	"github.com/llmgate/llmgate/internal/config"
	"github.com/llmgate/llmgate/internal/constant"
	"github.com/llmgate/llmgate/internal/registry"
)

// HealthEvent is emitted on every health transition to the external metrics
// sink. Sink failures never affect the manager.
type HealthEvent struct {
	ProviderUUID string
	ProviderType string
	EventType    string // healthy | unhealthy
	ErrorCode    int
	ErrorMessage string
}

// EventSink receives health events fire-and-forget.
type EventSink interface {
	RecordHealthEvent(event HealthEvent)
	RecordUsage(providerType, uuid string)
}

// Selection is the result of a provider pick.
type Selection struct {
	Account    *Account
	ActualType string
	IsFallback bool
}

// SelectOptions tune a single selection call.
type SelectOptions struct {
	RequestedModel string
	ExcludeUUIDs   []string
	// SkipUsageCount leaves lastUsed/usageCount untouched, for probes.
	SkipUsageCount bool
}

// Manager owns the account pools. All state transitions go through it; a
// single mutex serializes selection, health accounting and recovery
// bookkeeping.
type Manager struct {
	mu    sync.Mutex
	pools map[string][]*Account
	cfg   *config.Config
	sink  EventSink

	// probe runs a health check against one account; injected so tests can
	// stub the upstream call.
	probe ProbeFunc

	pending   map[string]bool
	saveTimer *time.Timer
	filePath  string
	closed    bool
}

// NewManager builds a manager over the given pools.
func NewManager(cfg *config.Config, pools map[string][]*Account, sink EventSink, probe ProbeFunc) *Manager {
	if pools == nil {
		pools = make(map[string][]*Account)
	}
	m := &Manager{
		pools:    pools,
		cfg:      cfg,
		sink:     sink,
		probe:    probe,
		pending:  make(map[string]bool),
		filePath: cfg.ProviderPoolsFilePath,
	}
	return m
}

func (m *Manager) lock()   { m.mu.Lock() }
func (m *Manager) unlock() { m.mu.Unlock() }

// UpdateConfig swaps the tunables on hot reload. In-flight requests keep the
// values they started with.
func (m *Manager) UpdateConfig(cfg *config.Config) {
	m.lock()
	defer m.unlock()
	m.cfg = cfg
	log.Info("pool manager configuration reloaded")
}

// Accounts returns a snapshot of the pool for a provider type.
func (m *Manager) Accounts(providerType string) []*Account {
	m.lock()
	defer m.unlock()
	accounts := m.pools[providerType]
	snapshot := make([]*Account, len(accounts))
	copy(snapshot, accounts)
	return snapshot
}

// ProviderTypes returns every type that has a pool.
func (m *Manager) ProviderTypes() []string {
	m.lock()
	defer m.unlock()
	types := make([]string, 0, len(m.pools))
	for providerType := range m.pools {
		types = append(types, providerType)
	}
	sort.Strings(types)
	return types
}

// SelectProvider picks the least-recently-used healthy account of the
// requested type, falling through the configured chain when the primary has
// no candidate.
func (m *Manager) SelectProvider(providerType string, opts SelectOptions) *Selection {
	m.lock()
	defer m.unlock()

	trial := m.trialTypes(providerType, opts.RequestedModel)
	for i, candidateType := range trial {
		account := m.pickLocked(candidateType, opts)
		if account == nil {
			continue
		}
		if i > 0 {
			log.Warnf("fallback activated: %s -> %s (model %q)", providerType, candidateType, opts.RequestedModel)
		}
		return &Selection{Account: account, ActualType: candidateType, IsFallback: i > 0}
	}
	return nil
}

// trialTypes builds the deduplicated trial list: the primary exactly once,
// then each fallback whose protocol prefix matches and whose catalogue
// claims the requested model.
func (m *Manager) trialTypes(providerType, requestedModel string) []string {
	trial := []string{providerType}
	seen := map[string]bool{providerType: true}
	primaryProtocol := constant.ProtocolForType(providerType)

	for _, fallbackType := range m.cfg.ProviderFallbackChain[providerType] {
		if seen[fallbackType] {
			continue
		}
		if constant.ProtocolForType(fallbackType) != primaryProtocol {
			continue
		}
		if requestedModel != "" && !registry.TypeSupportsModel(fallbackType, requestedModel) {
			continue
		}
		seen[fallbackType] = true
		trial = append(trial, fallbackType)
	}
	return trial
}

// pickLocked orders candidates by (lastUsed asc, usageCount asc) and takes
// the head. Callers hold the manager lock.
func (m *Manager) pickLocked(providerType string, opts SelectOptions) *Account {
	excluded := make(map[string]bool, len(opts.ExcludeUUIDs))
	for _, uuid := range opts.ExcludeUUIDs {
		excluded[uuid] = true
	}

	var candidates []*Account
	for _, account := range m.pools[providerType] {
		if !account.IsHealthy || account.IsDisabled || excluded[account.UUID] {
			continue
		}
		if opts.RequestedModel != "" && !account.SupportsModel(registry.BaseModel(opts.RequestedModel)) {
			continue
		}
		candidates = append(candidates, account)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		iUsed, jUsed := candidates[i].LastUsed, candidates[j].LastUsed
		switch {
		case iUsed == nil && jUsed != nil:
			return true
		case iUsed != nil && jUsed == nil:
			return false
		case iUsed != nil && jUsed != nil && !iUsed.Equal(*jUsed):
			return iUsed.Before(*jUsed)
		}
		return candidates[i].UsageCount < candidates[j].UsageCount
	})

	picked := candidates[0]
	if !opts.SkipUsageCount {
		now := time.Now()
		picked.LastUsed = &now
		picked.UsageCount++
		m.markPendingLocked(providerType)
		if m.sink != nil {
			m.sink.RecordUsage(providerType, picked.UUID)
		}
	}
	return picked
}

// MarkUnhealthy records an upstream failure. Crossing the error threshold
// flips the account unhealthy, emits a health event and arms the recovery
// scheduler. lastUsed is stamped so LRU will not immediately re-pick a
// failing account.
func (m *Manager) MarkUnhealthy(providerType string, account *Account, errMsg string, statusCode int) {
	m.lock()
	defer m.unlock()

	now := time.Now()
	account.ErrorCount++
	account.LastErrorTime = &now
	account.LastUsed = &now
	account.LastErrorMessage = errMsg
	account.LastErrorStatusCode = statusCode

	if account.ErrorCount >= m.cfg.Pool.MaxErrorCount && account.IsHealthy {
		account.IsHealthy = false
		log.Warnf("account %s (%s) marked unhealthy after %d errors: %s",
			account.UUID, providerType, account.ErrorCount, errMsg)
		m.emitLocked(providerType, account, "unhealthy", statusCode, errMsg)
		m.scheduleRecoveryLocked(providerType, account, statusCode)
	}
	m.markPendingLocked(providerType)
}

// MarkHealthy restores the healthy invariant: error and recovery state
// cleared, pending timer cancelled, health check stamped.
func (m *Manager) MarkHealthy(providerType string, account *Account, checkedModel string, resetUsage bool) {
	m.lock()
	defer m.unlock()

	wasUnhealthy := !account.IsHealthy
	now := time.Now()
	account.IsHealthy = true
	account.resetErrorState()
	account.cancelTimer()
	account.LastHealthCheckTime = &now
	if checkedModel != "" {
		account.LastHealthCheckModel = checkedModel
	}
	if resetUsage {
		account.UsageCount = 0
	}

	if wasUnhealthy {
		log.Infof("account %s (%s) recovered", account.UUID, providerType)
		m.emitLocked(providerType, account, "healthy", 0, "")
	}
	m.markPendingLocked(providerType)
}

// emitLocked sends a health event to the sink without holding it to any
// delivery guarantee.
func (m *Manager) emitLocked(providerType string, account *Account, eventType string, code int, message string) {
	if m.sink == nil {
		return
	}
	m.sink.RecordHealthEvent(HealthEvent{
		ProviderUUID: account.UUID,
		ProviderType: providerType,
		EventType:    eventType,
		ErrorCode:    code,
		ErrorMessage: message,
	})
}

// Shutdown cancels every recovery timer and flushes pending pool state.
func (m *Manager) Shutdown() {
	m.lock()
	m.closed = true
	for _, accounts := range m.pools {
		for _, account := range accounts {
			account.cancelTimer()
		}
	}
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
	hasPending := len(m.pending) > 0
	m.unlock()

	if hasPending {
		m.flush()
	}
}

// AdapterConfig resolves the proxy opt-in for the account's protocol and
// builds the factory config.
func (m *Manager) AdapterConfig(providerType string, account *Account) adapter.Config {
	useProxy := false
	switch constant.ProtocolForType(providerType) {
	case constant.ProtocolGemini:
		useProxy = m.cfg.UseSystemProxyGemini
	case constant.ProtocolOpenAI, constant.ProtocolOpenAIResponses:
		useProxy = m.cfg.UseSystemProxyOpenAI
	case constant.ProtocolClaude:
		useProxy = m.cfg.UseSystemProxyClaude
	}
	cfg := account.AdapterConfig(providerType, useProxy)
	if cfg.ProxyURL == "" {
		cfg.ProxyURL = m.cfg.ProxyURL
	}
	return cfg
}
