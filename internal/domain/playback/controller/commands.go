// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"context"
	"errors"
	"strings"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/domain/playback/ports"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/metrics"
)

// AddLinks appends every new address. Duplicates and blanks are ignored.
// Returns the number of addresses actually queued.
func (c *Controller) AddLinks(ctx context.Context, addresses []string) (int, error) {
	items := make([]model.QueueItem, 0, len(addresses))
	for _, a := range addresses {
		items = append(items, model.NewItem(strings.TrimSpace(a)))
	}
	return c.appendItems(ctx, items, "queue.links_added")
}

// Import appends items that may already carry metadata, with the same
// dedupe rules as AddLinks.
func (c *Controller) Import(ctx context.Context, items []model.QueueItem) (int, error) {
	clean := make([]model.QueueItem, 0, len(items))
	for _, it := range items {
		it.Address = strings.TrimSpace(it.Address)
		clean = append(clean, it)
	}
	return c.appendItems(ctx, clean, "queue.imported")
}

func (c *Controller) appendItems(ctx context.Context, items []model.QueueItem, event string) (int, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}
	c.mu.Lock()
	added := 0
	for _, it := range items {
		if c.q.AppendItem(it) {
			added++
		}
	}
	if added == 0 {
		c.mu.Unlock()
		return 0, nil
	}
	err := c.persistLocked(ctx)
	kick := !c.paused && c.q.Cursor() == model.NoCursor
	view, h, n := c.q.View(), c.handle, c.q.Len()
	c.mu.Unlock()

	c.logger.Info().
		Str(xglog.FieldEvent, event).
		Int("added", added).
		Int(xglog.FieldQueueLen, n).
		Msg("items queued")

	c.publish(view, h)
	if kick {
		c.triggerAdvance()
	}
	return added, err
}

// Start resumes playback. A loaded, unplayed item is resumed in place;
// anything else advances.
func (c *Controller) Start(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	c.paused = false
	err := c.persistLocked(ctx)
	cur, ok := c.q.Current()
	h := c.handle
	resume := ok && !c.q.IsPlayed(cur.Address) && h != ""
	// A play instruction while metadata is pending could start a disqualified
	// item; ReportMetadata sends it instead.
	deferred := c.awaitingMeta
	c.mu.Unlock()

	c.logger.Info().Str(xglog.FieldEvent, "playback.start").Bool("resume", resume).Msg("playback started")

	if !resume {
		c.triggerAdvance()
		return err
	}
	if deferred {
		return err
	}
	perr := c.driver.Play(ctx, h)
	metrics.RecordSurfaceOp("play", perr)
	if perr == nil {
		return err
	}
	c.logger.Warn().Err(perr).
		Str(xglog.FieldEvent, "surface.play_failed").
		Str(xglog.FieldHandle, string(h)).
		Msg("failed to resume surface")
	if isGone(perr) {
		c.dropHandle(ctx, h)
		c.triggerAdvance()
	}
	return err
}

// Stop pauses playback and the bound surface.
func (c *Controller) Stop(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	c.paused = true
	err := c.persistLocked(ctx)
	h := c.handle
	c.mu.Unlock()

	c.logger.Info().Str(xglog.FieldEvent, "playback.stop").Msg("playback paused")

	if h != "" {
		perr := c.driver.Pause(ctx, h)
		metrics.RecordSurfaceOp("pause", perr)
		if perr != nil {
			c.logger.Warn().Err(perr).
				Str(xglog.FieldEvent, "surface.pause_failed").
				Str(xglog.FieldHandle, string(h)).
				Msg("failed to pause surface")
		}
	}
	return err
}

// Skip marks the current item played and advances.
func (c *Controller) Skip(ctx context.Context) error {
	return c.finish(ctx, "", "playback.skip")
}

// ItemEnded is Skip for a completion signal. A non-empty address that is not
// the current item, or that already finished, is stale and discarded.
func (c *Controller) ItemEnded(ctx context.Context, address string) error {
	return c.finish(ctx, address, "playback.ended")
}

func (c *Controller) finish(ctx context.Context, address, event string) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	cur, ok := c.q.Current()
	if address != "" && (!ok || cur.Address != address || c.q.IsPlayed(address)) {
		c.mu.Unlock()
		metrics.IncStaleEvent("ended")
		c.logger.Debug().
			Str(xglog.FieldEvent, "playback.ended_stale").
			Str(xglog.FieldAddress, address).
			Msg("discarding stale completion")
		return nil
	}
	if ok {
		c.q.MarkPlayed(cur.Address)
	}
	c.paused = false
	c.awaitingMeta = false
	err := c.persistLocked(ctx)
	view, h := c.q.View(), c.handle
	c.mu.Unlock()

	c.logger.Info().
		Str(xglog.FieldEvent, event).
		Str(xglog.FieldAddress, cur.Address).
		Msg("item finished")

	c.publish(view, h)
	c.triggerAdvance()
	return err
}

// Clear empties the queue, pauses, and closes the bound surface.
func (c *Controller) Clear(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	h := c.handle
	c.q.Reset()
	c.paused = true
	c.handle = ""
	c.awaitingMeta = false
	c.epoch++
	err := c.persistLocked(ctx)
	view := c.q.View()
	c.mu.Unlock()

	if h != "" {
		cerr := c.driver.Close(ctx, h)
		metrics.RecordSurfaceOp("close", cerr)
		if cerr != nil {
			c.logger.Debug().Err(cerr).
				Str(xglog.FieldEvent, "surface.close_failed").
				Str(xglog.FieldHandle, string(h)).
				Msg("close after clear failed")
		}
	}
	c.logger.Info().Str(xglog.FieldEvent, "queue.cleared").Msg("queue cleared")
	c.publish(view, "")
	return err
}

// Remove deletes the item at index.
func (c *Controller) Remove(ctx context.Context, index int) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	wasCurrent := index == c.q.Cursor()
	if err := c.q.RemoveAt(index); err != nil {
		c.mu.Unlock()
		return err
	}
	if wasCurrent {
		c.awaitingMeta = false
	}
	err := c.persistLocked(ctx)
	kick := !c.paused && c.q.Cursor() == model.NoCursor && c.q.HasUnplayed()
	view, h := c.q.View(), c.handle
	c.mu.Unlock()

	c.logger.Info().
		Str(xglog.FieldEvent, "queue.removed").
		Int("index", index).
		Bool("was_current", wasCurrent).
		Msg("item removed")

	c.publish(view, h)
	if kick {
		c.triggerAdvance()
	}
	return err
}

// Move relocates an item. The cursor follows its item.
func (c *Controller) Move(ctx context.Context, from, to int) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	if err := c.q.Move(from, to); err != nil {
		c.mu.Unlock()
		return err
	}
	err := c.persistLocked(ctx)
	view, h := c.q.View(), c.handle
	c.mu.Unlock()

	c.logger.Debug().
		Str(xglog.FieldEvent, "queue.moved").
		Int("from", from).
		Int("to", to).
		Msg("item moved")

	c.publish(view, h)
	return err
}

// SurfaceClosed forgets the bound surface. Reports for any other handle are
// stale.
func (c *Controller) SurfaceClosed(ctx context.Context, h model.Handle) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	if h == "" || h != c.handle {
		c.mu.Unlock()
		metrics.IncStaleEvent("surface_closed")
		c.logger.Debug().
			Str(xglog.FieldEvent, "surface.closed_stale").
			Str(xglog.FieldHandle, string(h)).
			Msg("discarding close of unbound surface")
		return nil
	}
	c.handle = ""
	_ = c.q.SetCursor(model.NoCursor)
	c.awaitingMeta = false
	err := c.persistLocked(ctx)
	kick := !c.paused
	view := c.q.View()
	c.mu.Unlock()

	c.logger.Info().
		Str(xglog.FieldEvent, "surface.closed").
		Str(xglog.FieldHandle, string(h)).
		Msg("player surface closed")

	c.publish(view, "")
	if kick {
		c.triggerAdvance()
	}
	return err
}

// dropHandle forgets h if it is still bound, after a driver call proved it
// gone. The cursor is cleared with it so the next advance rebinds.
func (c *Controller) dropHandle(ctx context.Context, h model.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != h {
		return
	}
	c.handle = ""
	_ = c.q.SetCursor(model.NoCursor)
	c.awaitingMeta = false
	_ = c.persistLocked(ctx)
}

func isGone(err error) bool {
	return errors.Is(err, ports.ErrSurfaceGone)
}
