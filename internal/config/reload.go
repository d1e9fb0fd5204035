// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDebounce collapses the burst of events a single save produces.
const reloadDebounce = 500 * time.Millisecond

// ConfigHolder serves the active AppConfig and swaps it on reload. A reload
// that fails to load or validate leaves the active config in place.
type ConfigHolder struct {
	loader *Loader
	path   string
	logger zerolog.Logger

	mu      sync.RWMutex
	current AppConfig

	subsMu sync.Mutex
	subs   []chan<- AppConfig

	watcher *fsnotify.Watcher
	stopped chan struct{}
}

// NewConfigHolder returns a holder serving initial. An empty path disables
// file watching.
func NewConfigHolder(initial AppConfig, loader *Loader, path string) *ConfigHolder {
	return &ConfigHolder{
		loader:  loader,
		path:    path,
		logger:  xglog.WithComponent("config"),
		current: initial,
	}
}

// Get returns a copy of the active config.
func (h *ConfigHolder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-reads the config source and, when it validates, makes it active
// and hands it to every listener.
func (h *ConfigHolder) Reload(_ context.Context) error {
	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("keeping active config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	h.describeDiff(prev, next)
	h.notifyListeners(next)
	h.logger.Info().Str("event", "config.reloaded").Msg("config reloaded")
	return nil
}

// StartWatcher reloads whenever the config file changes. The parent
// directory is watched so editors that save by rename are seen too.
func (h *ConfigHolder) StartWatcher(ctx context.Context) error {
	if h.path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("no config file, env only")
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("config watcher: %w", err)
	}
	h.watcher = w
	h.stopped = make(chan struct{})

	h.logger.Info().Str("event", "config.watcher_started").Str("path", h.path).Msg("watching config file")
	go h.watch(ctx, filepath.Clean(h.path))
	return nil
}

func (h *ConfigHolder) watch(ctx context.Context, target string) {
	defer close(h.stopped)
	defer func() { _ = h.watcher.Close() }()

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			h.logger.Debug().Str("op", ev.Op.String()).Msg("config file touched")
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				_ = h.Reload(ctx)
			})
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Stop ends the watcher started by StartWatcher and waits for it.
func (h *ConfigHolder) Stop() {
	if h.watcher == nil {
		return
	}
	_ = h.watcher.Close()
	<-h.stopped
}

// RegisterListener subscribes ch to reloads. Sends never block; a listener
// that is not keeping up misses that reload.
func (h *ConfigHolder) RegisterListener(ch chan<- AppConfig) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	h.subs = append(h.subs, ch)
}

func (h *ConfigHolder) notifyListeners(cfg AppConfig) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str("event", "config.listener_skip").Msg("listener busy, reload not delivered")
		}
	}
}

// describeDiff logs the sections that changed. Store and listener changes
// only apply after a restart.
func (h *ConfigHolder) describeDiff(prev, next AppConfig) {
	if prev.LogLevel != next.LogLevel {
		h.logger.Info().Str("from", prev.LogLevel).Str("to", next.LogLevel).Msg("log level changed")
	}
	if prev.Playback != next.Playback {
		h.logger.Info().
			Int("max_duration_s", next.Playback.MaxDurationSeconds).
			Str("destination_class", next.Playback.DestinationClass).
			Msg("playback policy changed")
	}
	if prev.Notify != next.Notify {
		h.logger.Info().Int("attempts", next.Notify.Attempts).Msg("notify settings changed")
	}
	if prev.Store != next.Store || prev.API.ListenAddr != next.API.ListenAddr {
		h.logger.Warn().Str("event", "config.restart_required").Msg("store or listen address changed, restart to apply")
	}
}
