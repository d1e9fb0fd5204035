// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ports

import "errors"

var (
	// ErrSurfaceGone is returned for handles the driver no longer knows.
	ErrSurfaceGone = errors.New("surface gone")

	// ErrSurfaceTimeout is returned when a surface did not answer in time.
	ErrSurfaceTimeout = errors.New("surface did not respond")
)
