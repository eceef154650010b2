package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy(maxRetries int) *Policy {
	return &Policy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(3), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(2), zap.NewNop())

	calls := 0
	boom := errors.New("boom")
	err := r.Do(context.Background(), func() error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestDo_NonRetryableError(t *testing.T) {
	fatal := errors.New("fatal")
	transient := errors.New("transient")

	p := fastPolicy(5)
	p.RetryableErrors = []error{transient}
	r := NewBackoffRetryer(p, zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return fatal
	})

	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	p := fastPolicy(5)
	p.InitialDelay = time.Hour // guarantee the cancel wins the sleep
	r := NewBackoffRetryer(p, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, func() error { return errors.New("transient") })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResultTyped(t *testing.T) {
	r := NewBackoffRetryer(fastPolicy(1), zap.NewNop())

	calls := 0
	v, err := DoWithResultTyped(r, context.Background(), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestOnRetryCallback(t *testing.T) {
	p := fastPolicy(2)
	var attempts []int
	p.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}
	r := NewBackoffRetryer(p, zap.NewNop())

	_ = r.Do(context.Background(), func() error { return errors.New("x") })
	assert.Equal(t, []int{1, 2}, attempts)
}
