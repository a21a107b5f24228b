package retry

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/ens-relayer/relayer_service/pkg/errors"
	"go.uber.org/zap"
)

// Retrier runs operations under a retry policy
type Retrier struct {
	policy  Policy
	backoff *Backoff
	logger  *zap.Logger
}

// NewRetrier creates a new retrier
func NewRetrier(policy Policy, logger *zap.Logger) *Retrier {
	if err := policy.Validate(); err != nil {
		panic(fmt.Sprintf("invalid retry policy: %v", err))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Retrier{
		policy:  policy,
		backoff: NewBackoff(policy),
		logger:  logger,
	}
}

// Do executes operation until it succeeds, fails permanently or runs out of attempts
func (r *Retrier) Do(ctx context.Context, name string, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), lastErr)
			}
			return ctx.Err()
		default:
		}

		lastErr = operation(ctx)
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Debug("Operation succeeded after retries",
					zap.String("operation", name),
					zap.Int("attempt", attempt))
			}
			return nil
		}

		if !r.isRetryable(lastErr) {
			return lastErr
		}

		if attempt >= r.policy.MaxRetries {
			r.logger.Warn("Max retries exceeded",
				zap.String("operation", name),
				zap.Error(lastErr),
				zap.Int("attempts", attempt+1))
			return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
		}

		wait := r.backoff.Calculate(attempt + 1)
		r.logger.Debug("Retrying operation",
			zap.String("operation", name),
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func (r *Retrier) isRetryable(err error) bool {
	if r.policy.RetryableFunc != nil {
		return r.policy.RetryableFunc(err)
	}
	return apperrors.ShouldRetry(err)
}

// DoWithResult is Do for operations that produce a value
func DoWithResult[T any](ctx context.Context, r *Retrier, name string, operation func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, name, func(ctx context.Context) error {
		v, err := operation(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
