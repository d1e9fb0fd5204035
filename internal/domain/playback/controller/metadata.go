// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import (
	"context"
	"errors"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/metrics"
	"github.com/cenkalti/backoff/v5"
)

// fetchMetadata asks the surface for title and duration until the answer is
// complete, then reports it. After the last attempt the unknown placeholder
// is reported instead so playback is never held up.
func (c *Controller) fetchMetadata(ctx context.Context, h model.Handle, address string) {
	pol := c.Policy()
	attempt := 0
	md, err := backoff.Retry(ctx, func() (model.Metadata, error) {
		attempt++
		md, err := c.driver.RequestMetadata(ctx, h, address)
		metrics.RecordSurfaceOp("metadata", err)
		switch {
		case err != nil && isGone(err):
			return md, backoff.Permanent(err)
		case err != nil:
			return md, err
		case !md.Complete():
			c.logger.Debug().
				Str(xglog.FieldEvent, "metadata.incomplete").
				Str(xglog.FieldAddress, address).
				Int(xglog.FieldAttempt, attempt).
				Str(xglog.FieldTitle, md.Title).
				Msg("metadata incomplete, retrying")
			return md, errIncompleteMetadata
		}
		return md, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(pol.MetadataInterval)),
		backoff.WithMaxTries(uint(pol.MetadataAttempts)),
	)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if isGone(err) {
			// The close event takes it from here.
			return
		}
		if !errors.Is(err, errIncompleteMetadata) {
			c.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "metadata.failed").
				Str(xglog.FieldAddress, address).
				Msg("metadata request failed")
		}
		metrics.IncMetadataFallback()
		md = model.UnknownMetadata
	}
	_ = c.ReportMetadata(ctx, address, md.Title, md.DurationSeconds)
}

// ReportMetadata records title and duration for the current item. Reports
// for any other address are stale. An item longer than the configured limit
// is marked played and skipped without ever being told to play.
func (c *Controller) ReportMetadata(ctx context.Context, address, title string, durationSeconds int) error {
	if c.isClosed() {
		return ErrClosed
	}
	pol := c.Policy()

	c.mu.Lock()
	if !c.q.SetMetadata(address, title, durationSeconds) {
		c.mu.Unlock()
		metrics.IncStaleEvent("metadata")
		c.logger.Debug().
			Str(xglog.FieldEvent, "metadata.stale").
			Str(xglog.FieldAddress, address).
			Msg("discarding metadata for non-current item")
		return nil
	}

	if durationSeconds > pol.MaxDurationSeconds {
		c.q.MarkPlayed(address)
		c.awaitingMeta = false
		err := c.persistLocked(ctx)
		view, h := c.q.View(), c.handle
		c.mu.Unlock()

		metrics.IncDisqualified()
		c.logger.Info().
			Str(xglog.FieldEvent, "metadata.disqualified").
			Str(xglog.FieldAddress, address).
			Int(xglog.FieldDuration, durationSeconds).
			Int("max_duration_s", pol.MaxDurationSeconds).
			Msg("item too long, skipping")

		c.publish(view, h)
		c.triggerAdvance()
		return err
	}

	// Until the bound surface shows address, the report only records the
	// metadata; advanceOnce sends the play once binding completes.
	ready := c.handle != "" && c.boundFor == address
	play := c.awaitingMeta && !c.paused && ready
	c.awaitingMeta = false
	err := c.persistLocked(ctx)
	view, h := c.q.View(), c.handle
	c.mu.Unlock()

	c.logger.Info().
		Str(xglog.FieldEvent, "metadata.accepted").
		Str(xglog.FieldAddress, address).
		Str(xglog.FieldTitle, title).
		Int(xglog.FieldDuration, durationSeconds).
		Bool("bound", ready).
		Msg("metadata recorded")

	c.publish(view, h)
	if play {
		c.playBound(ctx, h)
	}
	return err
}

// playBound tells h to play. A surface that proved gone is dropped and the
// next advance rebinds.
func (c *Controller) playBound(ctx context.Context, h model.Handle) {
	err := c.driver.Play(ctx, h)
	metrics.RecordSurfaceOp("play", err)
	if err == nil {
		return
	}
	c.logger.Warn().Err(err).
		Str(xglog.FieldEvent, "surface.play_failed").
		Str(xglog.FieldHandle, string(h)).
		Msg("failed to start playback")
	if isGone(err) {
		c.dropHandle(ctx, h)
		c.triggerAdvance()
	}
}
