package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ens-relayer/relayer_service/pkg/idempotency"
)

const idempotencyPrefix = "idempotency:"

// RedisResponseStore keeps idempotent responses in Redis
type RedisResponseStore struct {
	client RedisClient
}

// NewRedisResponseStore creates a Redis backed idempotency store
func NewRedisResponseStore(client RedisClient) *RedisResponseStore {
	return &RedisResponseStore{client: client}
}

// Get returns nil, nil for unknown keys
func (s *RedisResponseStore) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	var record idempotency.Record
	err := s.client.Get(ctx, idempotencyPrefix+key, &record)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Save stores a record for ttl
func (s *RedisResponseStore) Save(ctx context.Context, record *idempotency.Record, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyPrefix+record.Key, record, ttl)
}

type memoryEntry struct {
	record    idempotency.Record
	expiresAt time.Time
}

// MemoryResponseStore keeps idempotent responses in process memory
type MemoryResponseStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryResponseStore creates an in-process idempotency store
func NewMemoryResponseStore() *MemoryResponseStore {
	return &MemoryResponseStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns nil, nil for unknown or expired keys
func (s *MemoryResponseStore) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, nil
	}
	record := entry.record
	return &record, nil
}

// Save stores a record for ttl
func (s *MemoryResponseStore) Save(ctx context.Context, record *idempotency.Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[record.Key] = memoryEntry{record: *record, expiresAt: s.now().Add(ttl)}
	return nil
}

// Sweep drops expired entries and returns how many were removed
func (s *MemoryResponseStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
