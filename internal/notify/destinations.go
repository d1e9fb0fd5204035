// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package notify

import (
	"context"
	"errors"

	"github.com/ManuGH/chatdj/internal/bus"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/domain/playback/ports"
	"github.com/cenkalti/backoff/v5"
)

// errNoAudience ends a delivery that has nobody to deliver to.
var errNoAudience = errors.New("notify: no audience")

// DisplayDestination publishes to the playlist topic. A display that connects
// later reads the current view itself, so no subscribers is not retried.
type DisplayDestination struct {
	Bus bus.Bus
}

func (DisplayDestination) Name() string { return "display" }

func (d DisplayDestination) Deliver(ctx context.Context, view model.PlaylistView, _ model.Handle) error {
	err := d.Bus.Publish(ctx, bus.TopicPlaylist, view)
	if errors.Is(err, bus.ErrNoSubscribers) {
		return backoff.Permanent(errNoAudience)
	}
	return err
}

// PlayerDestination pushes the overlay to the bound player surface.
type PlayerDestination struct {
	Driver ports.SurfaceDriver
}

func (PlayerDestination) Name() string { return "player" }

func (p PlayerDestination) Deliver(ctx context.Context, view model.PlaylistView, player model.Handle) error {
	if player == "" {
		return nil
	}
	err := p.Driver.ShowPlaylist(ctx, player, view)
	if errors.Is(err, ports.ErrSurfaceGone) {
		return backoff.Permanent(err)
	}
	return err
}
