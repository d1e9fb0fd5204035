// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errLaunch = errors.New("launch failed")

func fail() error { return errLaunch }
func ok() error   { return nil }

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 3, 30*time.Second, WithClock(clock))

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Execute(fail), errLaunch)
	}
	assert.Equal(t, StateClosed, cb.State())

	require.ErrorIs(t, cb.Execute(fail), errLaunch)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not run fn")
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute)

	_ = cb.Execute(fail)
	require.NoError(t, cb.Execute(ok))
	_ = cb.Execute(fail)
	assert.Equal(t, StateClosed, cb.State(), "failures must be consecutive")
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))

	_ = cb.Execute(fail)
	require.Equal(t, StateOpen, cb.State())

	clock.now = clock.now.Add(11 * time.Second)
	require.ErrorIs(t, cb.Execute(fail), errLaunch)
	assert.Equal(t, StateOpen, cb.State(), "failed probe re-opens")

	clock.now = clock.now.Add(11 * time.Second)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, time.Second, WithClock(clock))
	_ = cb.Execute(fail)
	clock.now = clock.now.Add(2 * time.Second)

	inProbe := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(inProbe)
			<-release
			return nil
		})
	}()

	<-inProbe
	assert.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen, "second caller waits for the probe")
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CancellationIsNotAFailure(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)

	err := cb.Execute(func() error { return context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())

	strict := NewCircuitBreaker("strict", 1, time.Minute, WithFailureFilter(func(error) bool { return true }))
	_ = strict.Execute(func() error { return context.Canceled })
	assert.Equal(t, StateOpen, strict.State())
}
