// Package breaker implements a generic circuit breaker used by
// internal/aiclient.Resilient to guard leaf calls that may cascade-fail.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker's three-state machine.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes the breaker.
type Config struct {
	Threshold        int
	ResetTimeout     time.Duration
	HalfOpenMaxCalls int
	OnStateChange    func(from, to State)
}

func DefaultConfig() Config {
	return Config{
		Threshold:        5,
		ResetTimeout:     60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

var ErrOpen = errors.New("breaker: circuit open")
var ErrHalfOpenLimit = errors.New("breaker: half-open call limit reached")

// Breaker guards calls to a single leaf adapter.
type Breaker struct {
	cfg Config

	mu              sync.Mutex
	state           State
	failures        int
	lastFailureAt   time.Time
	halfOpenCalls   int
}

func New(cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 3
	}
	return &Breaker{cfg: cfg, state: StateClosed}
}

// Call executes fn under the breaker's guard. isFailure decides whether a
// non-nil error counts toward the failure threshold (client errors that
// aren't the adapter's fault should make isFailure return false).
func Call[T any](b *Breaker, ctx context.Context, fn func(ctx context.Context) (T, error), isFailure func(error) bool) (T, error) {
	var zero T
	if err := b.before(); err != nil {
		return zero, err
	}

	result, err := fn(ctx)
	b.after(err == nil || !isFailure(err))
	return result, err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.lastFailureAt) > b.cfg.ResetTimeout {
			b.setState(StateHalfOpen)
			b.halfOpenCalls = 0
			return nil
		}
		return ErrOpen
	case StateHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			return ErrHalfOpenLimit
		}
		b.halfOpenCalls++
		return nil
	default:
		return nil
	}
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.setState(StateClosed)
			b.failures = 0
			b.halfOpenCalls = 0
		}
		return
	}

	b.failures++
	b.lastFailureAt = time.Now()
	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.Threshold {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.setState(StateOpen)
		b.halfOpenCalls = 0
	}
}

func (b *Breaker) setState(to State) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil {
		go b.cfg.OnStateChange(from, to)
	}
}

// State reports the breaker's current state, for health checks/metrics.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
