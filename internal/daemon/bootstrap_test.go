// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/chatdj/internal/config"
	"github.com/ManuGH/chatdj/internal/domain/playback/controller"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAppConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.DataDir = t.TempDir()
	cfg.API.ListenAddr = freeAddr(t)
	cfg.Metrics.Enabled = false
	cfg.Store.Backend = "memory"
	cfg.Surface.LaunchCommand = "true"
	cfg.Server = serverCfg()
	return cfg
}

func TestWireServices_ServesCommands(t *testing.T) {
	cfg := testAppConfig(t)
	c, err := WireServices(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app := NewApp(log.WithComponent("test"), c, nil)
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	awaitDial(t, cfg.API.ListenAddr)
	base := "http://" + cfg.API.ListenAddr

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond, "ready once the snapshot is restored")

	resp, err := http.Post(base+"/api/v1/links", "application/json",
		strings.NewReader(`{"addresses":["https://www.youtube.com/watch?v=aaaaaaaaaaa","ftp://nope"]}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/api/v1/state")
	require.NoError(t, err)
	var st controller.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	_ = resp.Body.Close()
	require.Len(t, st.Items, 1)
	assert.True(t, st.Paused, "adding links does not start playback")
	assert.Equal(t, model.NoCursor, st.Cursor)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestContainer_ApplyConfig(t *testing.T) {
	cfg := testAppConfig(t)
	c, err := WireServices(context.Background(), cfg)
	require.NoError(t, err)
	defer func() {
		c.API.Shutdown()
		c.Hub.Shutdown()
		c.Controller.Close()
		c.Notifier.Close()
		_ = c.Store.Close()
	}()

	cfg.Playback.MaxDurationSeconds = 60
	cfg.Playback.DestinationClass = "music.youtube.com"
	c.ApplyConfig(cfg)

	pol := c.Controller.Policy()
	assert.Equal(t, 60, pol.MaxDurationSeconds)
	assert.Equal(t, "music.youtube.com", pol.DestinationClass)
}

func TestWireServices_UnknownStoreBackend(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Store.Backend = "etcd"
	_, err := WireServices(context.Background(), cfg)
	require.Error(t, err)
}
