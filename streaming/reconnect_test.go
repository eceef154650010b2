package streaming

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestReconnector_NormalEndNoRetry(t *testing.T) {
	calls := 0
	r := NewReconnector(fastReconnectConfig(), func(ctx context.Context) error {
		calls++
		return nil
	}, nil)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateClosed, r.State())
}

func TestReconnector_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	r := NewReconnector(fastReconnectConfig(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("refused")
	}, nil)

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 5 reconnect attempts")
	// Initial dial plus five reconnects.
	assert.Equal(t, 6, calls)
	assert.Equal(t, StateClosed, r.State())
}

func TestReconnector_SuccessfulConnectionResetsBudget(t *testing.T) {
	calls := 0
	r := NewReconnector(fastReconnectConfig(), nil, nil)
	r.dial = func(ctx context.Context) error {
		calls++
		if calls <= 5 {
			// Straight connection failures, never open.
			return fmt.Errorf("refused")
		}
		if calls == 6 {
			// Connects, then drops. This resets the failure budget.
			r.MarkOpen()
			return fmt.Errorf("connection lost")
		}
		return nil
	}

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 7, calls)
}

func TestReconnector_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewReconnector(fastReconnectConfig(), func(ctx context.Context) error {
		cancel()
		return fmt.Errorf("dropped")
	}, nil)

	err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, r.State())
}

func TestReconnector_StateTransitions(t *testing.T) {
	var mu sync.Mutex
	var seen []ConnectionState

	calls := 0
	r := NewReconnector(fastReconnectConfig(), nil, nil)
	r.dial = func(ctx context.Context) error {
		calls++
		if calls == 1 {
			r.MarkOpen()
			return fmt.Errorf("dropped")
		}
		r.MarkOpen()
		return nil
	}
	r.OnStateChange(func(s ConnectionState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	require.NoError(t, r.Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []ConnectionState{
		StateConnecting,
		StateOpen,
		StateReconnecting,
		StateOpen,
		StateClosed,
	}, seen)
}
