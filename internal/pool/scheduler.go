package pool

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// scheduleRecoveryLocked arms the single recovery timer for an unhealthy
// account. A 429 goes straight to the rate-limit cadence; anything else
// burns through the quick-retry quota before settling on the standard
// interval. Callers hold the manager lock.
func (m *Manager) scheduleRecoveryLocked(providerType string, account *Account, statusCode int) {
	if m.closed || !*m.cfg.Pool.AutoHealthCheckEnabled {
		return
	}
	account.cancelTimer()

	var delay time.Duration
	now := time.Now()
	switch {
	case statusCode == http.StatusTooManyRequests:
		account.HealthCheckScheduleType = ScheduleRateLimit
		account.QuickRetryCount = 0
		account.QuickRetryPhaseStartTime = nil
		delay = time.Duration(m.cfg.Pool.RateLimitHealthCheckIntervalMs) * time.Millisecond

	case account.QuickRetryCount < m.cfg.Pool.QuickRetryMaxCount:
		account.HealthCheckScheduleType = ScheduleQuickRetry
		if account.QuickRetryPhaseStartTime == nil {
			account.QuickRetryPhaseStartTime = &now
		}
		delay = time.Duration(m.cfg.Pool.QuickRetryIntervalMs) * time.Millisecond

	default:
		account.HealthCheckScheduleType = ScheduleStandard
		delay = time.Duration(m.cfg.Pool.StandardHealthCheckIntervalMs) * time.Millisecond
	}

	log.Debugf("account %s (%s): %s recovery check in %s",
		account.UUID, providerType, account.HealthCheckScheduleType, delay)
	account.recoveryTimer = time.AfterFunc(delay, func() {
		m.runRecoveryCheck(providerType, account)
	})
}

// runRecoveryCheck fires from the recovery timer: forced probe, then either
// restore health or reschedule per policy.
func (m *Manager) runRecoveryCheck(providerType string, account *Account) {
	m.lock()
	if m.closed || account.IsHealthy || account.IsDisabled {
		m.unlock()
		return
	}
	account.recoveryTimer = nil
	if account.HealthCheckScheduleType == ScheduleQuickRetry {
		now := time.Now()
		account.QuickRetryCount++
		account.LastQuickRetryTime = &now
	}
	m.unlock()

	result := m.CheckProviderHealth(context.Background(), providerType, account, true)
	if result.Success {
		// Forced recovery checks reset the usage counter so a recovered
		// account re-enters rotation at the front of the LRU order.
		m.MarkHealthy(providerType, account, result.ModelName, true)
		return
	}

	log.Debugf("account %s (%s): recovery probe failed: %s", account.UUID, providerType, result.ErrorMessage)
	m.lock()
	now := time.Now()
	account.LastHealthCheckTime = &now
	account.LastHealthCheckModel = result.ModelName
	m.scheduleRecoveryLocked(providerType, account, result.StatusCode)
	m.markPendingLocked(providerType)
	m.unlock()
}

// StartAutoHealthChecks runs the periodic sweep over every account with
// health checking enabled until the context is cancelled. Unhealthy
// accounts are owned by their recovery timers and skipped here.
func (m *Manager) StartAutoHealthChecks(ctx context.Context) {
	if !*m.cfg.Pool.AutoHealthCheckEnabled {
		return
	}
	interval := time.Duration(m.cfg.Pool.HealthCheckIntervalMs) * time.Millisecond

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(ctx)
			}
		}
	}()
}

func (m *Manager) sweep(ctx context.Context) {
	for _, providerType := range m.ProviderTypes() {
		for _, account := range m.Accounts(providerType) {
			if !account.IsHealthy || account.IsDisabled {
				continue
			}
			result := m.CheckProviderHealth(ctx, providerType, account, false)
			switch {
			case result.Skipped:
				// Opted out: clear error counters without touching health.
				m.lock()
				account.resetErrorState()
				m.markPendingLocked(providerType)
				m.unlock()
			case result.Success:
				m.MarkHealthy(providerType, account, result.ModelName, false)
			default:
				m.MarkUnhealthy(providerType, account, result.ErrorMessage, result.StatusCode)
			}
		}
	}
}
