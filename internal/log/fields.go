// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldSurfaceID = "surface_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldHandle    = "handle"
	FieldAttempt   = "attempt"
	FieldBackend   = "backend"

	// Queue fields
	FieldAddress  = "address"
	FieldCursor   = "cursor"
	FieldTitle    = "title"
	FieldDuration = "duration_s"
	FieldQueueLen = "queue_len"
	FieldPaused   = "paused"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Request fields
	FieldKind   = "kind"
	FieldPath   = "path"
	FieldMethod = "method"
	FieldStatus = "status"
)
