package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	domainerrors "github.com/ens-relayer/relayer_service/internal/domain/errors"
)

// releaseTimeout bounds the release call made after a request has finished
const releaseTimeout = 2 * time.Second

// RedisLocker guards in-flight work across replicas with redislock
type RedisLocker struct {
	locker *redislock.Client
	logger *zap.Logger
}

// NewRedisLocker creates a lock client on top of an existing Redis connection
func NewRedisLocker(client *redis.Client, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{
		locker: redislock.New(client),
		logger: logger,
	}
}

// Acquire obtains key for ttl. A held key yields an error matching domainerrors.ErrConflict.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s is held", domainerrors.ErrConflict, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// MemoryLocker is the single-replica in-flight guard used when Redis is disabled
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Acquire obtains key for ttl. Expired holds are taken over.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiry, ok := l.held[key]; ok && now.Before(expiry) {
		return nil, fmt.Errorf("%w: %s is held", domainerrors.ErrConflict, key)
	}
	expiry := now.Add(ttl)
	l.held[key] = expiry

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// only drop our own hold, not one that replaced it after expiry
			if held, ok := l.held[key]; ok && held.Equal(expiry) {
				delete(l.held, key)
			}
		})
	}, nil
}
