// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package controller

import "errors"

var (
	// ErrNoSurface means no player surface could be bound for the target item.
	ErrNoSurface = errors.New("no player surface available")

	// ErrNotReady means a surface did not finish loading within ReadyTimeout.
	ErrNotReady = errors.New("player surface not ready")

	// ErrPersist wraps snapshot write failures. In-memory state is kept.
	ErrPersist = errors.New("persist snapshot")

	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("controller closed")

	errIncompleteMetadata = errors.New("incomplete metadata")
	errMalformed          = errors.New("malformed snapshot value")
)
