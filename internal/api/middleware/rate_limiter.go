package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ens-relayer/relayer_service/internal/domain/entities"
	domainerrors "github.com/ens-relayer/relayer_service/internal/domain/errors"
)

// Default cleanup interval and TTL for rate limiter entries
const (
	defaultCleanupInterval = 5 * time.Minute
	defaultCleanupTTL      = 10 * time.Minute
)

// limiterEntry stores a rate limiter with its last access time for TTL-based cleanup
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter is a per-client token bucket. Idle entries are evicted so the
// map stays bounded.
type IPRateLimiter struct {
	limiters   map[string]*limiterEntry
	mu         sync.Mutex
	rate       rate.Limit
	burst      int
	cleanupTTL time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewIPRateLimiter allows requestsPerMinute per client IP, clamped to at least 1
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	return NewIPRateLimiterWithTTL(requestsPerMinute, defaultCleanupTTL)
}

// NewIPRateLimiterWithTTL creates a rate limiter with custom cleanup TTL
func NewIPRateLimiterWithTTL(requestsPerMinute int, cleanupTTL time.Duration) *IPRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	if cleanupTTL <= 0 {
		cleanupTTL = defaultCleanupTTL
	}

	l := &IPRateLimiter{
		limiters:   make(map[string]*limiterEntry),
		rate:       rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:      requestsPerMinute,
		cleanupTTL: cleanupTTL,
		stopCh:     make(chan struct{}),
	}

	go l.cleanupLoop(defaultCleanupInterval)

	return l
}

func (l *IPRateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *IPRateLimiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.cleanupTTL {
			delete(l.limiters, key)
		}
	}
}

// Stop stops the background cleanup goroutine
func (l *IPRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *IPRateLimiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, ok := l.limiters[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[key] = &limiterEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// Limit returns middleware that rate limits by client IP.
// c.ClientIP() trusts X-Forwarded-For only from proxies set via engine.SetTrustedProxies.
func (l *IPRateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.getLimiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, entities.ErrorResponse{
				Success: false,
				Error:   "Too many requests. Please try again later.",
				Code:    domainerrors.CodeRateLimit,
				Details: map[string]interface{}{"request_id": c.GetString("request_id")},
			})
			return
		}
		c.Next()
	}
}

// Size returns the current number of entries in the limiter map
func (l *IPRateLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
