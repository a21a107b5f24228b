package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/ens-relayer/relayer_service/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy(retries int) Policy {
	return Policy{
		MaxRetries:   retries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetrier_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		r := NewRetrier(fastPolicy(3), zap.NewNop())
		calls := 0
		err := r.Do(ctx, "flaky", func(context.Context) error {
			calls++
			if calls < 3 {
				return apperrors.Transient(errors.New("connection reset"))
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		r := NewRetrier(fastPolicy(3), zap.NewNop())
		calls := 0
		permanent := errors.New("execution reverted")
		err := r.Do(ctx, "permanent", func(context.Context) error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		r := NewRetrier(fastPolicy(2), zap.NewNop())
		calls := 0
		err := r.Do(ctx, "always", func(context.Context) error {
			calls++
			return apperrors.Transient(errors.New("503 service unavailable"))
		})
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.Equal(t, 3, calls)
	})

	t.Run("custom classifier wins", func(t *testing.T) {
		p := fastPolicy(2)
		p.RetryableFunc = func(error) bool { return false }
		r := NewRetrier(p, zap.NewNop())
		calls := 0
		_ = r.Do(ctx, "custom", func(context.Context) error {
			calls++
			return apperrors.Transient(errors.New("connection reset"))
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		r := NewRetrier(fastPolicy(5), zap.NewNop())
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := r.Do(cctx, "cancelled", func(context.Context) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDoWithResult(t *testing.T) {
	r := NewRetrier(fastPolicy(1), zap.NewNop())
	calls := 0
	v, err := DoWithResult(context.Background(), r, "value", func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, apperrors.Transient(errors.New("i/o timeout"))
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.NoError(t, NoRetry().Validate())
	assert.Error(t, Policy{MaxRetries: -1, Multiplier: 1}.Validate())
	assert.Error(t, Policy{Multiplier: 0.5}.Validate())
	assert.Error(t, Policy{Multiplier: 1, Jitter: 2}.Validate())
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	b := NewBackoff(Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2})
	assert.Equal(t, 100*time.Millisecond, b.Calculate(1))
	assert.Equal(t, 200*time.Millisecond, b.Calculate(2))
	assert.Equal(t, 300*time.Millisecond, b.Calculate(5))
}
