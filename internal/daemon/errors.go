// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

// Wiring and lifecycle errors.
var (
	ErrMissingLogger     = errors.New("daemon: logger is required")
	ErrMissingAPIHandler = errors.New("daemon: api handler is required")
	ErrMissingManager    = errors.New("daemon: app needs a wired container with a manager")
	ErrManagerNotStarted = errors.New("daemon: manager was never started")
)
