// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package controller implements the playback state machine: it owns the queue,
// the played set, the cursor and the bound player surface, decides what plays
// next and keeps the persisted snapshot in step with every mutation.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/domain/playback/ports"
	"github.com/ManuGH/chatdj/internal/domain/playback/queue"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/metrics"
	"github.com/ManuGH/chatdj/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const persistTimeout = 5 * time.Second

// Deps are the collaborators of a Controller.
type Deps struct {
	Driver   ports.SurfaceDriver
	Store    ports.KeyValue
	Notifier ports.Notifier
	Policy   Policy
}

// Status is the read-only view returned by get-state.
type Status struct {
	Items  []model.QueueItem `json:"items"`
	Cursor int               `json:"cursor"`
	Played []string          `json:"played"`
	Paused bool              `json:"paused"`
	State  model.State       `json:"state"`
	Handle model.Handle      `json:"surfaceHandle,omitempty"`
}

// Controller is the single owner of playback state.
type Controller struct {
	driver   ports.SurfaceDriver
	kv       ports.KeyValue
	notifier ports.Notifier
	logger   zerolog.Logger
	tracer   trace.Tracer

	policy atomic.Pointer[Policy]

	// guard serializes Advance; concurrent triggers are dropped.
	guard     *semaphore.Weighted
	advancing atomic.Bool

	mu           sync.Mutex
	q            *queue.Store
	paused       bool
	handle       model.Handle
	boundFor     string // address handle was last loaded with
	awaitingMeta bool
	epoch        uint64 // bumped by Clear

	bgMu   sync.RWMutex
	bg     sync.WaitGroup
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// New wires a controller. State starts at defaults until Load is called.
func New(deps Deps) (*Controller, error) {
	if deps.Driver == nil {
		return nil, errors.New("controller: surface driver is required")
	}
	if deps.Store == nil {
		return nil, errors.New("controller: store is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		driver:   deps.Driver,
		kv:       deps.Store,
		notifier: deps.Notifier,
		logger:   xglog.WithComponent("controller"),
		tracer:   telemetry.Tracer("chatdj/controller"),
		guard:    semaphore.NewWeighted(1),
		q:        queue.New(),
		paused:   true,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.SetPolicy(deps.Policy)
	return c, nil
}

// SetPolicy swaps the policy. Safe to call while advancing.
func (c *Controller) SetPolicy(p Policy) {
	p = p.normalized()
	c.policy.Store(&p)
}

// Policy returns the active policy.
func (c *Controller) Policy() Policy {
	return *c.policy.Load()
}

// Load restores the persisted snapshot. Absent or malformed fields take their
// defaults and the corrected snapshot is written back. A backend error leaves
// defaults in place and is returned for logging; the controller stays usable.
func (c *Controller) Load(ctx context.Context) error {
	p, repaired, readErr := readSnapshot(ctx, c.kv)

	c.mu.Lock()
	if c.q.Restore(p.queue) {
		repaired = true
	}
	if cur, ok := c.q.Current(); ok && c.q.IsPlayed(cur.Address) {
		_ = c.q.SetCursor(model.NoCursor)
		repaired = true
	}
	c.paused = p.paused
	c.handle = p.handle
	c.boundFor = ""
	if cur, ok := c.q.Current(); ok {
		c.boundFor = cur.Address
	}

	var persistErr error
	if repaired {
		persistErr = c.persistLocked(ctx)
	}
	owed := c.progressOwedLocked()
	c.updateGaugesLocked()
	n, cursor, paused := c.q.Len(), c.q.Cursor(), c.paused
	c.mu.Unlock()

	ev := c.logger.Info()
	if readErr != nil {
		ev = c.logger.Error().Err(readErr)
	}
	ev.Str(xglog.FieldEvent, "state.loaded").
		Int(xglog.FieldQueueLen, n).
		Int(xglog.FieldCursor, cursor).
		Bool(xglog.FieldPaused, paused).
		Bool("repaired", repaired).
		Msg("playback state loaded")

	if owed {
		c.triggerAdvance()
	}
	if p.handle != "" {
		c.verifyRestored(p.handle)
	}
	if readErr != nil {
		return fmt.Errorf("load snapshot: %w", readErr)
	}
	return persistErr
}

// verifyRestored treats a restored handle as closed when no surface has
// claimed it once RestoreCheckDelay has passed. A surface that went away with
// the previous process never produces a close event of its own.
func (c *Controller) verifyRestored(h model.Handle) {
	delay := c.Policy().RestoreCheckDelay
	c.goBackground(func(ctx context.Context) {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		info, err := c.driver.Inspect(ctx, h)
		metrics.RecordSurfaceOp("inspect", err)
		if ctx.Err() != nil || (err == nil && info.Alive) {
			return
		}
		c.logger.Info().Err(err).
			Str(xglog.FieldEvent, "surface.restore_unclaimed").
			Str(xglog.FieldHandle, string(h)).
			Msg("restored surface did not come back")
		_ = c.SurfaceClosed(ctx, h)
	})
}

// Close stops background work and waits for it. Commands issued afterwards
// return ErrClosed; triggers are ignored.
func (c *Controller) Close() {
	c.bgMu.Lock()
	if c.closed {
		c.bgMu.Unlock()
		return
	}
	c.closed = true
	c.bgMu.Unlock()

	c.cancel()
	c.bg.Wait()
}

// Drain waits for in-flight background work without stopping the controller.
func (c *Controller) Drain() {
	c.bg.Wait()
}

// Status returns a copy of the state for get-state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Items:  c.q.Items(),
		Cursor: c.q.Cursor(),
		Played: c.q.Played(),
		Paused: c.paused,
		State:  c.stateLocked(),
		Handle: c.handle,
	}
}

// State returns the derived controller state.
func (c *Controller) State() model.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// View returns the playlist view.
func (c *Controller) View() model.PlaylistView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.View()
}

// Export returns a copy of the queue including known metadata.
func (c *Controller) Export() []model.QueueItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Items()
}

func (c *Controller) stateLocked() model.State {
	return model.DeriveState(c.advancing.Load(), c.paused, c.q.Cursor(), c.awaitingMeta)
}

// progressOwedLocked reports whether an advance has work to do.
func (c *Controller) progressOwedLocked() bool {
	if c.paused {
		return false
	}
	cur, ok := c.q.Current()
	if !ok {
		return c.q.HasUnplayed()
	}
	return c.q.IsPlayed(cur.Address)
}

// persistLocked writes the snapshot. Callers hold c.mu so the persisted order
// equals the mutation order.
func (c *Controller) persistLocked(ctx context.Context) error {
	values, err := encodeSnapshot(persisted{
		queue:  c.q.Snapshot(),
		paused: c.paused,
		handle: c.handle,
	})
	if err == nil {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		err = c.kv.SetMany(wctx, values)
		cancel()
	}
	c.updateGaugesLocked()
	if err != nil {
		metrics.IncPersistError()
		c.logger.Error().Err(err).Str(xglog.FieldEvent, "state.persist_failed").Msg("failed to persist playback state")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (c *Controller) updateGaugesLocked() {
	metrics.SetQueueSize(c.q.Len(), len(c.q.Played()))
}

// publish hands the view to the notifier. Never called with c.mu held.
func (c *Controller) publish(view model.PlaylistView, h model.Handle) {
	c.notifier.Publish(view, h)
}

// goBackground runs fn on a tracked goroutine unless the controller is closed.
func (c *Controller) goBackground(fn func(ctx context.Context)) bool {
	c.bgMu.RLock()
	defer c.bgMu.RUnlock()
	if c.closed {
		return false
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn(c.ctx)
	}()
	return true
}

func (c *Controller) triggerAdvance() {
	c.goBackground(func(ctx context.Context) {
		c.Advance(ctx)
	})
}

func (c *Controller) isClosed() bool {
	c.bgMu.RLock()
	defer c.bgMu.RUnlock()
	return c.closed
}

type nopNotifier struct{}

func (nopNotifier) Publish(model.PlaylistView, model.Handle) {}
