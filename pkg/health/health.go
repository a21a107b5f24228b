package health

import (
	"context"
	"sync"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single probe
type CheckResult struct {
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// HealthResponse is returned by the health endpoints
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type check struct {
	fn       CheckFunc
	critical bool
}

// HealthChecker runs registered probes concurrently.
// A failing critical probe makes the service unhealthy, a failing optional one degrades it.
type HealthChecker struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		checks:  make(map[string]check),
		timeout: timeout,
	}
}

// Register adds a probe that fails the service when it fails
func (h *HealthChecker) Register(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{fn: fn, critical: true}
}

// RegisterOptional adds a probe whose failure only degrades the service
func (h *HealthChecker) RegisterOptional(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check{fn: fn, critical: false}
}

// Check runs every probe and folds the results into one status
func (h *HealthChecker) Check(ctx context.Context) (Status, map[string]CheckResult) {
	h.mu.RLock()
	checks := make(map[string]check, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
		status  = StatusHealthy
	)

	for name, c := range checks {
		wg.Add(1)
		go func(name string, c check) {
			defer wg.Done()
			start := time.Now()
			err := c.fn(ctx)
			res := CheckResult{Status: StatusHealthy, Duration: time.Since(start).String()}
			if err != nil {
				res.Error = err.Error()
				res.Status = StatusDegraded
				if c.critical {
					res.Status = StatusUnhealthy
				}
			}

			mu.Lock()
			results[name] = res
			switch {
			case res.Status == StatusUnhealthy:
				status = StatusUnhealthy
			case res.Status == StatusDegraded && status == StatusHealthy:
				status = StatusDegraded
			}
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()

	return status, results
}
