// Package retry provides an exponential-backoff retryer used for agent
// backend calls and other flaky I/O.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy defines the retry behavior.
type Policy struct {
	MaxRetries      int           // maximum retry count (0 means no retries)
	InitialDelay    time.Duration // delay before the first retry
	MaxDelay        time.Duration // cap on the computed delay
	Multiplier      float64       // exponential growth factor
	Jitter          bool          // randomize delays to avoid thundering herds
	RetryableErrors []error       // empty means every error is retryable

	// OnRetry, when set, is invoked before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns the policy used for agent backend calls.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer executes functions with retries according to a Policy.
type Retryer interface {
	// Do executes fn, retrying on failure according to the policy.
	Do(ctx context.Context, fn func() error) error

	// DoWithResult executes fn and returns its result, retrying on failure.
	DoWithResult(ctx context.Context, fn func() (any, error)) (any, error)
}

type backoffRetryer struct {
	policy *Policy
	logger *zap.Logger
}

// NewBackoffRetryer creates an exponential-backoff retryer.
func NewBackoffRetryer(policy *Policy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 500 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 10 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 2.0
	}

	return &backoffRetryer{policy: policy, logger: logger}
}

func (r *backoffRetryer) Do(ctx context.Context, fn func() error) error {
	_, err := r.DoWithResult(ctx, func() (any, error) {
		return nil, fn()
	})
	return err
}

func (r *backoffRetryer) DoWithResult(ctx context.Context, fn func() (any, error)) (any, error) {
	var lastErr error
	var result any

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)

			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)

			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, lastErr = fn()
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Debug("retry succeeded", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		if !r.isRetryable(lastErr) {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("all %d retries exhausted: %w", r.policy.MaxRetries, lastErr)
}

// calculateDelay computes the backoff delay for the given attempt.
func (r *backoffRetryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		// full jitter in [delay/2, delay)
		delay = delay/2 + rand.Float64()*delay/2
	}
	return time.Duration(delay)
}

// isRetryable reports whether err matches the policy's retryable set.
func (r *backoffRetryer) isRetryable(err error) bool {
	if len(r.policy.RetryableErrors) == 0 {
		return true
	}
	for _, target := range r.policy.RetryableErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
