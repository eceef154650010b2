package streaming

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConnectionState is the client-side lifecycle of a streamed session.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateOpen         ConnectionState = "open"
	StateReconnecting ConnectionState = "reconnecting"
	StateClosed       ConnectionState = "closed"
)

// DialFunc establishes one connection attempt and blocks until the
// connection drops. Implementations call the reconnector's MarkOpen
// once the connection is established. A nil return means the session
// ended normally.
type DialFunc func(ctx context.Context) error

// ReconnectConfig tunes the client reconnect loop.
type ReconnectConfig struct {
	// MaxAttempts caps consecutive failed reconnects before giving up.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// InitialDelay is the backoff before the first reconnect.
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// Multiplier grows the delay after each failed attempt.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// DefaultReconnectConfig returns the default reconnect settings.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Reconnector drives a dial function through connect, open and
// reconnect states. A successful connection resets the attempt counter,
// so only consecutive failures count toward MaxAttempts.
type Reconnector struct {
	cfg    ReconnectConfig
	dial   DialFunc
	logger *zap.Logger

	mu         sync.RWMutex
	state      ConnectionState
	onChange   func(ConnectionState)
	openedOnce bool
}

// NewReconnector creates a reconnector for one dial function.
func NewReconnector(cfg ReconnectConfig, dial DialFunc, logger *zap.Logger) *Reconnector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2.0
	}
	return &Reconnector{
		cfg:    cfg,
		dial:   dial,
		logger: logger.With(zap.String("component", "reconnector")),
		state:  StateConnecting,
	}
}

// OnStateChange registers a callback invoked on every transition. Must
// be set before Run.
func (r *Reconnector) OnStateChange(fn func(ConnectionState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// State reports the current connection state.
func (r *Reconnector) State() ConnectionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Reconnector) setState(s ConnectionState) {
	r.mu.Lock()
	r.state = s
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// MarkOpen records that the current dial attempt established a
// connection. Dial functions call this once the stream is live; it
// resets the consecutive-failure budget.
func (r *Reconnector) MarkOpen() {
	r.mu.Lock()
	r.state = StateOpen
	r.openedOnce = true
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn(StateOpen)
	}
}

// Run blocks until the session ends normally, the context is cancelled,
// or MaxAttempts consecutive reconnects fail.
func (r *Reconnector) Run(ctx context.Context) error {
	attempt := 0
	delay := r.cfg.InitialDelay

	for {
		if attempt == 0 {
			r.setState(StateConnecting)
		} else {
			r.setState(StateReconnecting)
		}

		r.mu.Lock()
		r.openedOnce = false
		r.mu.Unlock()

		err := r.dial(ctx)
		if err == nil {
			r.setState(StateClosed)
			return nil
		}
		if ctx.Err() != nil {
			r.setState(StateClosed)
			return ctx.Err()
		}

		r.mu.RLock()
		opened := r.openedOnce
		r.mu.RUnlock()
		if opened {
			attempt = 0
			delay = r.cfg.InitialDelay
		}

		attempt++
		if attempt > r.cfg.MaxAttempts {
			r.setState(StateClosed)
			return fmt.Errorf("streaming: giving up after %d reconnect attempts: %w", r.cfg.MaxAttempts, err)
		}

		r.logger.Warn("connection lost, reconnecting",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			r.setState(StateClosed)
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * r.cfg.Multiplier)
		if delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
		}
	}
}
