// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards flaky external actions, such as launching a
// browser for a new player surface, against retry storms.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/chatdj/internal/metrics"
)

// State is a breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned without running the action while the breaker
// is open or a probe is already out.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// CircuitBreaker opens after a run of consecutive failures and rejects
// calls for a cool-down. After that one probe call decides whether it
// closes again.
type CircuitBreaker struct {
	name     string
	limit    int
	cooldown time.Duration
	clk      clock
	isFault  func(error) bool

	mu       sync.Mutex
	state    State
	streak   int
	openedAt time.Time
	probeOut bool
}

// Option tunes a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock replaces the wall clock.
func WithClock(c clock) Option {
	return func(cb *CircuitBreaker) { cb.clk = c }
}

// WithFailureFilter decides which errors count against the breaker.
// Without it, context cancellation is not a fault.
func WithFailureFilter(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.isFault = fn }
}

// NewCircuitBreaker returns a closed breaker. limit below one means 3 and a
// non-positive cooldown means 30s.
func NewCircuitBreaker(name string, limit int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:     name,
		limit:    max(limit, 0),
		cooldown: cooldown,
		clk:      wallClock{},
		isFault:  func(err error) bool { return !errors.Is(err, context.Canceled) },
		state:    StateClosed,
	}
	if cb.limit == 0 {
		cb.limit = 3
	}
	if cb.cooldown <= 0 {
		cb.cooldown = 30 * time.Second
	}
	for _, o := range opts {
		o(cb)
	}
	metrics.SetBreakerState(name, string(StateClosed))
	return cb
}

// Execute runs fn unless the breaker refuses it, and feeds the result back.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	res := fn()
	cb.settle(probe, res)
	return res
}

func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateClosed {
		return false, nil
	}
	if cb.state == StateOpen {
		if cb.clk.Now().Before(cb.openedAt.Add(cb.cooldown)) {
			return false, ErrCircuitOpen
		}
		cb.move(StateHalfOpen)
	}
	if cb.probeOut {
		return false, ErrCircuitOpen
	}
	cb.probeOut = true
	return true, nil
}

func (cb *CircuitBreaker) settle(probe bool, res error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case res == nil:
		cb.streak = 0
		cb.move(StateClosed)
	case cb.isFault(res):
		cb.streak++
		if cb.state == StateHalfOpen {
			metrics.IncBreakerOpened(cb.name, "probe_failed")
			cb.move(StateOpen)
		} else if cb.state == StateClosed && cb.streak >= cb.limit {
			metrics.IncBreakerOpened(cb.name, "threshold")
			cb.move(StateOpen)
		}
	case probe:
		// Not a fault either way; hand the probe to the next caller.
		cb.probeOut = false
	}
}

// move requires cb.mu.
func (cb *CircuitBreaker) move(to State) {
	cb.probeOut = false
	if cb.state == to {
		return
	}
	cb.state = to
	if to == StateOpen {
		cb.openedAt = cb.clk.Now()
	}
	metrics.SetBreakerState(cb.name, string(to))
}

// State reports the current position.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
