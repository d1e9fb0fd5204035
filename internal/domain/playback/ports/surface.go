// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports declares the contracts the playback controller drives.
// Implementations live in infrastructure packages (surface, store, notify).
package ports

import (
	"context"

	"github.com/ManuGH/chatdj/internal/domain/playback/model"
)

// SurfaceDriver abstracts "a window showing a given address".
// The controller does not own surface lifecycles; a handle becomes invalid
// once a surface-closed report for it arrives or a call returns
// ErrSurfaceGone.
type SurfaceDriver interface {
	// FindExisting returns the first ready surface of the destination class,
	// preferring an exact destination match over a looser one.
	FindExisting(ctx context.Context, class string) (model.Handle, bool, error)

	// Create opens a new surface showing address.
	Create(ctx context.Context, address string) (model.Handle, error)

	// UpdateAddress navigates an existing surface to address.
	UpdateAddress(ctx context.Context, h model.Handle, address string) error

	// Inspect reports liveness and the current address of h.
	Inspect(ctx context.Context, h model.Handle) (model.SurfaceInfo, error)

	// IsReady reports whether h finished loading its current address.
	IsReady(ctx context.Context, h model.Handle) (bool, error)

	// RequestMetadata asks h for title and duration of the loaded address.
	RequestMetadata(ctx context.Context, h model.Handle, address string) (model.Metadata, error)

	Play(ctx context.Context, h model.Handle) error
	Pause(ctx context.Context, h model.Handle) error

	// ShowPlaylist pushes the playlist view to the surface overlay.
	ShowPlaylist(ctx context.Context, h model.Handle, view model.PlaylistView) error

	// Close tears the surface down. Best effort.
	Close(ctx context.Context, h model.Handle) error
}

// Notifier pushes the playlist view to the display surface and to the bound
// player surface. Delivery is best effort and must not block the caller.
type Notifier interface {
	Publish(view model.PlaylistView, player model.Handle)
}

// KeyValue is the persistence contract: a flat key to JSON value map.
// SetMany writes all values atomically where the backend allows it.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetMany(ctx context.Context, values map[string][]byte) error
}
