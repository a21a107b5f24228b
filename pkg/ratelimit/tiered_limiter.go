package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Window is a sliding-window counter keyed by tier and subject
type Window interface {
	// Hit records one event when the window has room. retryAfter is set when
	// the event was refused.
	Hit(ctx context.Context, key string, limit int64, window time.Duration) (allowed bool, remaining int64, retryAfter time.Duration, err error)
}

// TieredConfig defines tiered rate limiting configuration
type TieredConfig struct {
	GlobalLimit   int64
	GlobalWindow  time.Duration
	AddressLimit  int64
	AddressWindow time.Duration
}

// TieredLimiter implements multi-tier rate limiting
type TieredLimiter struct {
	window Window
	config TieredConfig
	logger *zap.Logger
}

// NewTieredLimiter creates a new tiered rate limiter
func NewTieredLimiter(window Window, config TieredConfig, logger *zap.Logger) *TieredLimiter {
	return &TieredLimiter{
		window: window,
		config: config,
		logger: logger,
	}
}

// CheckResult contains the result of a rate limit check
type CheckResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	LimitedBy  string
}

// Check runs the global tier then the address tier
func (l *TieredLimiter) Check(ctx context.Context, address string) (*CheckResult, error) {
	if l.config.GlobalLimit > 0 {
		res, err := l.checkTier(ctx, "global", "global", l.config.GlobalLimit, l.config.GlobalWindow)
		if err != nil || !res.Allowed {
			return res, err
		}
	}

	if l.config.AddressLimit > 0 && address != "" {
		res, err := l.checkTier(ctx, "address", strings.ToLower(address), l.config.AddressLimit, l.config.AddressWindow)
		if err != nil || !res.Allowed {
			return res, err
		}
	}

	return &CheckResult{Allowed: true, Remaining: -1}, nil
}

// Allow adapts Check to the submission limiter the reverse service expects
func (l *TieredLimiter) Allow(ctx context.Context, address string) (bool, time.Duration, error) {
	res, err := l.Check(ctx, address)
	if err != nil {
		return false, 0, err
	}
	if !res.Allowed {
		l.logger.Info("Submission rate limited",
			zap.String("tier", res.LimitedBy),
			zap.String("address", address),
			zap.Duration("retry_after", res.RetryAfter))
	}
	return res.Allowed, res.RetryAfter, nil
}

func (l *TieredLimiter) checkTier(ctx context.Context, tier, subject string, limit int64, window time.Duration) (*CheckResult, error) {
	allowed, remaining, retryAfter, err := l.window.Hit(ctx, fmt.Sprintf("ratelimit:%s:%s", tier, subject), limit, window)
	if err != nil {
		return nil, err
	}
	return &CheckResult{Allowed: allowed, Remaining: remaining, RetryAfter: retryAfter, LimitedBy: tier}, nil
}

// RedisWindow keeps each window as a sorted set of event timestamps
type RedisWindow struct {
	redis *redis.Client
	now   func() time.Time
}

func NewRedisWindow(client *redis.Client) *RedisWindow {
	return &RedisWindow{redis: client, now: time.Now}
}

func (w *RedisWindow) Hit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Duration, error) {
	now := w.now()
	windowStart := now.Add(-window)
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

	pipe := w.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	countCmd := pipe.ZCount(ctx, key, fmt.Sprintf("%d", windowStart.UnixNano()), "+inf")
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.ZAdd(ctx, key, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, 0, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := countCmd.Val()
	if count < limit {
		return true, limit - count - 1, 0, nil
	}

	// refused events do not occupy the window
	if err := w.redis.ZRem(ctx, key, member).Err(); err != nil {
		return false, 0, 0, fmt.Errorf("rate limit rollback failed: %w", err)
	}

	retryAfter := window
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		retryAfter = time.Unix(0, int64(oldest[0].Score)).Add(window).Sub(now)
	}
	return false, 0, retryAfter, nil
}

// MemoryWindow is the single-instance fallback used when redis is disabled
type MemoryWindow struct {
	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
}

func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{events: make(map[string][]time.Time), now: time.Now}
}

func (w *MemoryWindow) Hit(_ context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Duration, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	windowStart := now.Add(-window)

	kept := w.events[key][:0]
	for _, ts := range w.events[key] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	count := int64(len(kept))
	if count >= limit {
		w.events[key] = kept
		return false, 0, kept[0].Add(window).Sub(now), nil
	}

	w.events[key] = append(kept, now)
	return true, limit - count - 1, 0, nil
}
