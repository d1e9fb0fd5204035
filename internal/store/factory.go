// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"fmt"

	"github.com/ManuGH/chatdj/internal/config"
	xglog "github.com/ManuGH/chatdj/internal/log"
)

// Open creates the Adapter selected by cfg.Backend.
func Open(cfg config.StoreConfig) (Adapter, error) {
	logger := xglog.WithComponent("store")

	var (
		a   Adapter
		err error
	)
	switch cfg.Backend {
	case BackendMemory, "":
		a = NewMemoryStore()
	case BackendBadger:
		a, err = OpenBadgerStore(cfg.Path)
	case BackendSQLite:
		a, err = OpenSQLiteStore(cfg.Path)
	case BackendRedis:
		a, err = OpenRedisStore(RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "store.opened").
		Str(xglog.FieldBackend, cfg.Backend).
		Str(xglog.FieldPath, cfg.Path).
		Msg("state store opened")
	return a, nil
}
