// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/chatdj/internal/config"
	"github.com/ManuGH/chatdj/internal/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func awaitDial(t *testing.T, addr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond, "nothing listening on %s", addr)
}

func serverCfg() config.ServerConfig {
	return config.ServerConfig{
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		IdleTimeout:     10 * time.Second,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 3 * time.Second,
	}
}

func runManager(ctx context.Context, m Manager) <-chan error {
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error, within time.Duration) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(within):
		t.Fatal("Start did not return")
		return nil
	}
}

func TestNewManager_Deps(t *testing.T) {
	tests := []struct {
		name string
		deps Deps
		want error
	}{
		{"ok", Deps{Logger: log.WithComponent("test"), APIAddr: "127.0.0.1:0", APIHandler: http.NotFoundHandler()}, nil},
		{"disabled logger", Deps{Logger: zerolog.Nop(), APIHandler: http.NotFoundHandler()}, ErrMissingLogger},
		{"no api handler", Deps{Logger: log.WithComponent("test")}, ErrMissingAPIHandler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager(config.ServerConfig{}, tt.deps)
			if tt.want == nil {
				require.NoError(t, err)
				assert.NotNil(t, m)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestManager_ServesUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := freeAddr(t)
	m, err := NewManager(serverCfg(), Deps{
		Logger:  log.WithComponent("test"),
		APIAddr: addr,
		APIHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "queue")
		}),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runManager(ctx, m)
	awaitDial(t, addr)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "queue", string(body))

	cancel()
	assert.NoError(t, waitDone(t, done, 5*time.Second))
}

func TestManager_BindConflictFailsStart(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	m, err := NewManager(serverCfg(), Deps{
		Logger:     log.WithComponent("test"),
		APIAddr:    taken.Addr().String(),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	err = m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api listener")
}

func TestManager_HooksRunNewestFirst(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m, err := NewManager(serverCfg(), Deps{
		Logger:     log.WithComponent("test"),
		APIAddr:    "127.0.0.1:0",
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []string
	)
	hookErr := errors.New("flush failed")
	for _, name := range []string{"store", "controller", "surfaces"} {
		m.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			if name == "controller" {
				return hookErr
			}
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Start(ctx)

	require.ErrorIs(t, err, hookErr)
	assert.Contains(t, err.Error(), "hook controller")
	assert.Equal(t, []string{"surfaces", "controller", "store"}, order)

	assert.NoError(t, m.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestManager_ShutdownDeadline(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	addr := freeAddr(t)
	m, err := NewManager(serverCfg(), Deps{
		Logger:  log.WithComponent("test"),
		APIAddr: addr,
		APIHandler: http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			once.Do(func() { close(entered) })
			select {
			case <-r.Context().Done():
			case <-release:
			}
		}),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runManager(ctx, m)
	awaitDial(t, addr)

	reqDone := make(chan struct{})
	go func() {
		defer close(reqDone)
		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		if resp, err := client.Get("http://" + addr); err == nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}

	cancel()
	err = waitDone(t, done, 6*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown errors")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	select {
	case <-reqDone:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request did not finish")
	}
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(serverCfg(), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManager_MetricsListener(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	metricsAddr := freeAddr(t)
	m, err := NewManager(serverCfg(), Deps{
		Logger:      log.WithComponent("test"),
		APIAddr:     "127.0.0.1:0",
		APIHandler:  http.NotFoundHandler(),
		MetricsAddr: metricsAddr,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# HELP chatdj_queue_items\n")
		}),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runManager(ctx, m)
	awaitDial(t, metricsAddr)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + metricsAddr)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "chatdj_queue_items")

	cancel()
	assert.NoError(t, waitDone(t, done, 5*time.Second))
}
