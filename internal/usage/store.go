// Package usage persists health events and per-account usage counters in a
// bbolt database. Writes are fire-and-forget: they run on a background
// goroutine and failures are logged, never surfaced to the pool manager.
package usage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/llmgate/llmgate/internal/pool"
)

var (
	bucketHealthEvents = []byte("health_events")
	bucketAccountUsage = []byte("account_usage")
)

// healthEventRecord is the stored shape of one health transition.
type healthEventRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	ProviderUUID string    `json:"providerUuid"`
	ProviderType string    `json:"providerType"`
	EventType    string    `json:"eventType"`
	ErrorCode    int       `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Store is the durable sink behind the pool manager's health events.
type Store struct {
	db   *bolt.DB
	jobs chan func(tx *bolt.Tx) error
	done chan struct{}
}

// Open creates or opens the store at path and starts the writer goroutine.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open usage store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketHealthEvents); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketAccountUsage)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init usage store: %w", err)
	}

	s := &Store{
		db:   db,
		jobs: make(chan func(tx *bolt.Tx) error, 256),
		done: make(chan struct{}),
	}
	go s.writer()
	return s, nil
}

func (s *Store) writer() {
	defer close(s.done)
	for job := range s.jobs {
		if err := s.db.Update(job); err != nil {
			log.Warnf("usage store write failed: %v", err)
		}
	}
}

// submit queues a write, dropping it when the queue is full. Losing a
// metrics write is preferable to blocking the pool manager.
func (s *Store) submit(job func(tx *bolt.Tx) error) {
	select {
	case s.jobs <- job:
	default:
		log.Warn("usage store queue full, dropping write")
	}
}

// RecordHealthEvent appends one health transition, keyed by timestamp and
// account uuid.
func (s *Store) RecordHealthEvent(event pool.HealthEvent) {
	record := healthEventRecord{
		Timestamp:    time.Now(),
		ProviderUUID: event.ProviderUUID,
		ProviderType: event.ProviderType,
		EventType:    event.EventType,
		ErrorCode:    event.ErrorCode,
		ErrorMessage: event.ErrorMessage,
	}
	s.submit(func(tx *bolt.Tx) error {
		payload, err := json.Marshal(record)
		if err != nil {
			return err
		}
		key := record.Timestamp.Format(time.RFC3339Nano) + "|" + record.ProviderUUID
		return tx.Bucket(bucketHealthEvents).Put([]byte(key), payload)
	})
}

// RecordUsage bumps the per-account request counter.
func (s *Store) RecordUsage(providerType, uuid string) {
	s.submit(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAccountUsage)
		key := []byte(providerType + "|" + uuid)
		count := uint64(0)
		if existing := bucket.Get(key); len(existing) == 8 {
			count = binary.BigEndian.Uint64(existing)
		}
		value := make([]byte, 8)
		binary.BigEndian.PutUint64(value, count+1)
		return bucket.Put(key, value)
	})
}

// UsageCount reads the persisted counter for one account.
func (s *Store) UsageCount(providerType, uuid string) (uint64, error) {
	var count uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		if value := tx.Bucket(bucketAccountUsage).Get([]byte(providerType + "|" + uuid)); len(value) == 8 {
			count = binary.BigEndian.Uint64(value)
		}
		return nil
	})
	return count, err
}

// Close drains the write queue and closes the database.
func (s *Store) Close() error {
	close(s.jobs)
	<-s.done
	return s.db.Close()
}
