package pool

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoadPools reads the persisted pool file: a JSON object keyed by provider
// type, each value an array of account states. A missing file is an empty
// baseline, not an error.
func LoadPools(path string) (map[string][]*Account, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string][]*Account), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pool file: %w", err)
	}

	var pools map[string][]*Account
	if err = json.Unmarshal(data, &pools); err != nil {
		return nil, fmt.Errorf("parse pool file: %w", err)
	}
	if pools == nil {
		pools = make(map[string][]*Account)
	}
	return pools, nil
}

// markPendingLocked records a dirty provider type and arms the debounce
// timer when none is pending. Callers hold the manager lock.
func (m *Manager) markPendingLocked(providerType string) {
	m.pending[providerType] = true
	if m.saveTimer != nil || m.closed {
		return
	}
	m.saveTimer = time.AfterFunc(m.cfg.SaveDebounceTime(), func() {
		m.lock()
		m.saveTimer = nil
		m.unlock()
		m.flush()
	})
}

// flush performs one read-overlay-write cycle for every pending type. The
// pending set is read-then-cleared under the lock, so a mutation landing
// during the write arms the next cycle instead of being lost.
func (m *Manager) flush() {
	m.lock()
	if len(m.pending) == 0 {
		m.unlock()
		return
	}
	dirty := make(map[string]json.RawMessage, len(m.pending))
	for providerType := range m.pending {
		snapshot, err := json.Marshal(m.pools[providerType])
		if err != nil {
			log.Errorf("serialize pool %s: %v", providerType, err)
			continue
		}
		dirty[providerType] = snapshot
	}
	m.pending = make(map[string]bool)
	path := m.filePath
	m.unlock()

	var document map[string]json.RawMessage
	if data, err := os.ReadFile(path); err == nil {
		if err = json.Unmarshal(data, &document); err != nil {
			log.Warnf("pool file unreadable, rewriting from memory: %v", err)
		}
	}
	if document == nil {
		document = make(map[string]json.RawMessage)
	}
	for providerType, snapshot := range dirty {
		document[providerType] = snapshot
	}

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		log.Errorf("serialize pool file: %v", err)
		return
	}
	if err = os.WriteFile(path, data, 0o644); err != nil {
		log.Errorf("write pool file: %v", err)
	}
}
