// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store provides the persistence adapters behind the playback
// snapshot: a flat key to JSON value map on memory, badger, sqlite or redis.
package store

import (
	"context"
	"errors"

	"github.com/ManuGH/chatdj/internal/domain/playback/ports"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Adapter is a ports.KeyValue with a lifecycle.
type Adapter interface {
	ports.KeyValue
	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
