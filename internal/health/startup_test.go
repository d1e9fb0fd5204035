// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ManuGH/chatdj/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformStartupChecks(t *testing.T) {
	base := func() config.AppConfig {
		cfg := config.Defaults()
		cfg.DataDir = filepath.Join(t.TempDir(), "data")
		cfg.Surface.LaunchCommand = "definitely-not-installed-browser"
		return cfg
	}

	t.Run("creates data dir", func(t *testing.T) {
		cfg := base()
		require.NoError(t, PerformStartupChecks(context.Background(), cfg))
		assert.DirExists(t, cfg.DataDir)
	})

	t.Run("bad listen address", func(t *testing.T) {
		cfg := base()
		cfg.API.ListenAddr = "8088"
		err := PerformStartupChecks(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api listen address")
		assert.Contains(t, err.Error(), "preflight listeners")
	})

	t.Run("metrics address ignored when disabled", func(t *testing.T) {
		cfg := base()
		cfg.Metrics.Enabled = false
		cfg.Metrics.ListenAddr = "nonsense"
		require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	})

	t.Run("bad redis address", func(t *testing.T) {
		cfg := base()
		cfg.Store.Backend = "redis"
		cfg.Store.Redis.Addr = "localhost"
		require.Error(t, PerformStartupChecks(context.Background(), cfg))
	})

	t.Run("store path parent is created", func(t *testing.T) {
		cfg := base()
		cfg.Store.Backend = "sqlite"
		cfg.Store.Path = filepath.Join(t.TempDir(), "nested", "state.sqlite")
		require.NoError(t, PerformStartupChecks(context.Background(), cfg))
		assert.DirExists(t, filepath.Dir(cfg.Store.Path))
	})
}
