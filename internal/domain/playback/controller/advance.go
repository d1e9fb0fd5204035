// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/metrics"
	"github.com/ManuGH/chatdj/internal/telemetry"
	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type outcome string

const (
	outcomeBound      outcome = "bound"
	outcomeIdle       outcome = "idle"
	outcomeFailed     outcome = "failed"
	outcomeAborted    outcome = "aborted"    // queue cleared while binding
	outcomeSuperseded outcome = "superseded" // target left the cursor while binding
)

// maxPasses bounds the re-check loop inside one guarded section.
const maxPasses = 16

// Advance moves playback to the first unplayed item and binds a surface to
// it. It returns false when another advance already holds the guard. The
// holder re-checks for owed progress both before and after releasing, so a
// dropped trigger is never lost.
func (c *Controller) Advance(ctx context.Context) bool {
	if !c.guard.TryAcquire(1) {
		metrics.IncAdvanceDropped()
		c.logger.Debug().Str(xglog.FieldEvent, "advance.dropped").Msg("advance already in flight")
		return false
	}
	for {
		out := c.advanceGuarded(ctx)
		if out == outcomeFailed || out == outcomeAborted || ctx.Err() != nil || !c.progressOwed() {
			return true
		}
		// A trigger may have been dropped between the last check and the
		// release; whoever holds the guard now owns that work.
		if !c.guard.TryAcquire(1) {
			return true
		}
	}
}

// advanceGuarded runs passes while progress is owed. The caller holds the
// guard; it is released on every exit path.
func (c *Controller) advanceGuarded(ctx context.Context) outcome {
	defer c.guard.Release(1)

	c.advancing.Store(true)
	defer c.advancing.Store(false)

	start := time.Now()
	defer func() { metrics.ObserveAdvanceDuration(time.Since(start)) }()

	ctx, span := c.tracer.Start(ctx, "playback.advance")
	defer span.End()

	var out outcome
	for pass := 0; pass < maxPasses; pass++ {
		out = c.advanceOnce(ctx)
		metrics.RecordAdvance(string(out))
		span.AddEvent("pass", telemetryOutcome(out))
		if out == outcomeFailed || out == outcomeAborted || ctx.Err() != nil || !c.progressOwed() {
			break
		}
	}
	return out
}

func (c *Controller) progressOwed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressOwedLocked()
}

func (c *Controller) advanceOnce(ctx context.Context) outcome {
	pol := c.Policy()

	c.mu.Lock()
	idx := c.q.FirstUnplayed()
	if idx == model.NoCursor {
		_ = c.q.SetCursor(model.NoCursor)
		c.paused = false
		c.handle = ""
		c.awaitingMeta = false
		_ = c.persistLocked(ctx)
		view := c.q.View()
		c.mu.Unlock()

		c.logger.Info().Str(xglog.FieldEvent, "advance.exhausted").Msg("queue exhausted")
		c.publish(view, "")
		return outcomeIdle
	}

	_ = c.q.SetCursor(idx)
	target, _ := c.q.Current()
	c.awaitingMeta = true
	bound := c.handle
	epoch := c.epoch
	n := c.q.Len()
	_ = c.persistLocked(ctx)
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "playback.bind")
	span.SetAttributes(telemetry.PlaybackAttributes(target.Address, idx, n)...)
	defer span.End()

	logger := c.logger.With().
		Str(xglog.FieldAddress, target.Address).
		Int(xglog.FieldCursor, idx).
		Logger()
	logger.Info().Str(xglog.FieldEvent, "advance.target").Msg("advancing")

	h, err := c.bind(ctx, pol, bound, target.Address)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bind failed")

		c.mu.Lock()
		if c.epoch == epoch {
			if cur, ok := c.q.Current(); ok && cur.Address == target.Address {
				_ = c.q.SetCursor(model.NoCursor)
			}
			c.handle = ""
			c.awaitingMeta = false
			_ = c.persistLocked(ctx)
		}
		view := c.q.View()
		c.mu.Unlock()

		logger.Error().Err(err).Str(xglog.FieldEvent, "advance.failed").Msg("no player surface could be bound")
		c.publish(view, "")
		return outcomeFailed
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		logger.Info().Str(xglog.FieldEvent, "advance.aborted").Msg("queue cleared while binding")
		c.closeQuietly(ctx, h)
		return outcomeAborted
	}
	c.handle = h
	c.boundFor = target.Address
	cur, ok := c.q.Current()
	stillTarget := ok && cur.Address == target.Address && !c.q.IsPlayed(target.Address)
	// With the target still current, only an accepted report clears the flag.
	metaKnown := stillTarget && !c.awaitingMeta
	if !stillTarget {
		c.awaitingMeta = false
	}
	playNow := metaKnown && !c.paused
	_ = c.persistLocked(ctx)
	view := c.q.View()
	c.mu.Unlock()

	c.publish(view, h)
	if !stillTarget {
		logger.Debug().Str(xglog.FieldEvent, "advance.superseded").Msg("target changed while binding")
		return outcomeSuperseded
	}

	logger.Info().
		Str(xglog.FieldEvent, "advance.bound").
		Str(xglog.FieldHandle, string(h)).
		Bool("metadata_known", metaKnown).
		Msg("player surface bound")

	if metaKnown {
		if playNow {
			c.playBound(ctx, h)
		}
		return outcomeBound
	}
	c.goBackground(func(bgctx context.Context) {
		c.fetchMetadata(bgctx, h, target.Address)
	})
	return outcomeBound
}

// bind returns a ready surface showing address: the bound one if it is still
// alive on the destination class, else an existing one, else a new one.
func (c *Controller) bind(ctx context.Context, pol Policy, bound model.Handle, address string) (model.Handle, error) {
	if bound != "" {
		info, err := c.driver.Inspect(ctx, bound)
		metrics.RecordSurfaceOp("inspect", err)
		switch {
		case err != nil:
			c.logger.Debug().Err(err).Str(xglog.FieldHandle, string(bound)).Msg("bound surface not inspectable")
		case !info.Alive:
			c.logger.Debug().Str(xglog.FieldHandle, string(bound)).Msg("bound surface gone")
		case !model.MatchesClass(info.Address, pol.DestinationClass):
			c.logger.Debug().
				Str(xglog.FieldHandle, string(bound)).
				Str("surface_address", info.Address).
				Msg("bound surface left destination class")
		default:
			lerr := c.load(ctx, pol, bound, address)
			if lerr == nil {
				return bound, nil
			}
			c.logger.Warn().Err(lerr).
				Str(xglog.FieldEvent, "surface.reuse_failed").
				Str(xglog.FieldHandle, string(bound)).
				Msg("could not reuse bound surface")
		}
	}

	existing, found, err := c.driver.FindExisting(ctx, pol.DestinationClass)
	metrics.RecordSurfaceOp("find", err)
	if err == nil && found && existing != bound {
		lerr := c.load(ctx, pol, existing, address)
		if lerr == nil {
			return existing, nil
		}
		c.logger.Warn().Err(lerr).
			Str(xglog.FieldEvent, "surface.reuse_failed").
			Str(xglog.FieldHandle, string(existing)).
			Msg("could not reuse existing surface")
	}

	var created model.Handle
	err = retryFixed(ctx, pol.SurfaceAttempts, pol.SurfaceRetryDelay, func(attempt int) error {
		h, err := c.driver.Create(ctx, address)
		metrics.RecordSurfaceOp("create", err)
		if err != nil {
			c.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "surface.create_failed").
				Int(xglog.FieldAttempt, attempt).
				Msg("surface create failed")
			return err
		}
		created = h
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSurface, err)
	}
	if err := c.waitReady(ctx, pol, created); err != nil {
		c.closeQuietly(ctx, created)
		return "", fmt.Errorf("%w: %v", ErrNoSurface, err)
	}
	return created, nil
}

// load navigates h to address and waits for it to settle.
func (c *Controller) load(ctx context.Context, pol Policy, h model.Handle, address string) error {
	err := retryFixed(ctx, pol.SurfaceAttempts, pol.SurfaceRetryDelay, func(attempt int) error {
		err := c.driver.UpdateAddress(ctx, h, address)
		metrics.RecordSurfaceOp("update", err)
		if err != nil && isGone(err) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		return err
	}
	return c.waitReady(ctx, pol, h)
}

// waitReady polls IsReady until it reports true or ReadyTimeout passes.
func (c *Controller) waitReady(ctx context.Context, pol Policy, h model.Handle) error {
	ctx, cancel := context.WithTimeout(ctx, pol.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(pol.ReadyPollInterval)
	defer ticker.Stop()
	for {
		ready, err := c.driver.IsReady(ctx, h)
		if err != nil && isGone(err) {
			return err
		}
		if ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %s", ErrNotReady, h, pol.ReadyTimeout)
		case <-ticker.C:
		}
	}
}

func (c *Controller) closeQuietly(ctx context.Context, h model.Handle) {
	err := c.driver.Close(ctx, h)
	metrics.RecordSurfaceOp("close", err)
	if err != nil {
		c.logger.Debug().Err(err).Str(xglog.FieldHandle, string(h)).Msg("close failed")
	}
}

// retryFixed runs op up to attempts times with a constant delay between
// tries. Permanent errors stop early.
func retryFixed(ctx context.Context, attempts int, delay time.Duration, op func(attempt int) error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, op(attempt)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
		backoff.WithMaxTries(uint(attempts)),
	)
	return err
}

func telemetryOutcome(out outcome) trace.EventOption {
	return trace.WithAttributes(attribute.String(telemetry.PlaybackOutcomeKey, string(out)))
}
