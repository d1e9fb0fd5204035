// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// State is the externally visible controller state.
type State string

const (
	StateIdle             State = "idle"
	StateLoading          State = "loading"
	StateAwaitingMetadata State = "awaiting_metadata"
	StatePlaying          State = "playing"
	StatePaused           State = "paused"
)

// DeriveState maps controller flags to a State. advancing wins over paused
// because a running advance still mutates the cursor.
func DeriveState(advancing, paused bool, cursor int, awaitingMetadata bool) State {
	switch {
	case advancing:
		return StateLoading
	case paused:
		return StatePaused
	case cursor == NoCursor:
		return StateIdle
	case awaitingMetadata:
		return StateAwaitingMetadata
	default:
		return StatePlaying
	}
}
