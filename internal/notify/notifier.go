// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package notify pushes playlist views to their destinations with retries.
// A newer view for a destination cancels any retry still running for it.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/chatdj/internal/config"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/metrics"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// Policy is the retry schedule per destination.
type Policy struct {
	Attempts        int
	InitialInterval time.Duration
	Multiplier      float64
}

// PolicyFromConfig maps the notify config section.
func PolicyFromConfig(cfg config.NotifyConfig) Policy {
	return Policy{
		Attempts:        cfg.Attempts,
		InitialInterval: cfg.InitialInterval,
		Multiplier:      cfg.Multiplier,
	}
}

// NewBackOff returns the exponential schedule without jitter.
func (p Policy) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	b.Reset()
	return b
}

// Destination receives playlist views.
type Destination interface {
	Name() string
	Deliver(ctx context.Context, view model.PlaylistView, player model.Handle) error
}

type flight struct {
	id     uint64
	cancel context.CancelFunc
}

// Notifier implements ports.Notifier over a set of destinations.
type Notifier struct {
	dests  []Destination
	policy atomic.Pointer[Policy]
	logger zerolog.Logger

	mu       sync.Mutex
	inflight map[string]flight
	seq      uint64
	closed   bool
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func New(policy Policy, dests ...Destination) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		dests:    dests,
		logger:   xglog.WithComponent("notify"),
		inflight: make(map[string]flight),
		ctx:      ctx,
		cancel:   cancel,
	}
	n.SetPolicy(policy)
	return n
}

// SetPolicy swaps the retry schedule for future publishes.
func (n *Notifier) SetPolicy(p Policy) {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	n.policy.Store(&p)
}

// Publish starts delivery of view to every destination and returns at once.
func (n *Notifier) Publish(view model.PlaylistView, player model.Handle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	pol := *n.policy.Load()
	for _, d := range n.dests {
		if prev, ok := n.inflight[d.Name()]; ok {
			prev.cancel()
		}
		n.seq++
		ctx, cancel := context.WithCancel(n.ctx)
		f := flight{id: n.seq, cancel: cancel}
		n.inflight[d.Name()] = f

		n.wg.Add(1)
		go n.deliver(ctx, f, d, pol, view, player)
	}
}

func (n *Notifier) deliver(ctx context.Context, f flight, d Destination, pol Policy, view model.PlaylistView, player model.Handle) {
	defer n.wg.Done()
	defer func() {
		n.mu.Lock()
		if cur, ok := n.inflight[d.Name()]; ok && cur.id == f.id {
			delete(n.inflight, d.Name())
		}
		n.mu.Unlock()
		f.cancel()
	}()

	logger := n.logger.With().Str("destination", d.Name()).Logger()
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		attempt++
		return struct{}{}, d.Deliver(ctx, view, player)
	},
		backoff.WithBackOff(pol.NewBackOff()),
		backoff.WithMaxTries(uint(pol.Attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Debug().Err(err).
				Int(xglog.FieldAttempt, attempt).
				Dur("retry_in", next).
				Msg("playlist delivery failed, retrying")
		}),
	)

	switch {
	case err == nil:
		metrics.RecordNotifyDelivery(d.Name(), "delivered")
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		metrics.RecordNotifyDelivery(d.Name(), "superseded")
	case errors.Is(err, errNoAudience):
		metrics.RecordNotifyDelivery(d.Name(), "no_audience")
		logger.Debug().Str(xglog.FieldEvent, "notify.no_audience").Msg("nobody listening, view dropped")
	default:
		metrics.RecordNotifyDelivery(d.Name(), "exhausted")
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "notify.exhausted").
			Int(xglog.FieldAttempt, attempt).
			Msg("playlist delivery gave up")
	}
}

// Close cancels running deliveries and waits for them.
func (n *Notifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.cancel()
	n.wg.Wait()
}
