// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/chatdj/internal/config"
	"github.com/rs/zerolog"
)

// App runs a wired Container: listeners, state restore and, when a config
// holder is given, hot reload.
type App struct {
	logger    zerolog.Logger
	container *Container
	cfgHolder *config.ConfigHolder
	hup       os.Signal
}

// NewApp returns an App. A nil cfgHolder disables reloads.
func NewApp(logger zerolog.Logger, container *Container, cfgHolder *config.ConfigHolder) *App {
	return &App{logger: logger, container: container, cfgHolder: cfgHolder, hup: syscall.SIGHUP}
}

// Run blocks until ctx ends or the manager fails.
func (a *App) Run(ctx context.Context) error {
	if a.container == nil {
		return errNotWired
	}
	if a.container.Manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("config file will not be watched")
		}
		g.Go(func() error { return a.applyReloads(ctx) })
		if a.hup != nil {
			g.Go(func() error { return a.reloadOnSignal(ctx) })
		}
	}

	// The router buffers commands until the restore finishes.
	g.Go(func() error {
		a.container.Restore(ctx)
		return nil
	})
	g.Go(func() error { return a.container.Manager.Start(ctx) })

	err := g.Wait()
	if a.cfgHolder != nil {
		a.cfgHolder.Stop()
	}
	return err
}

func (a *App) applyReloads(ctx context.Context) error {
	updates := make(chan config.AppConfig, 1)
	a.cfgHolder.RegisterListener(updates)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-updates:
			a.container.ApplyConfig(cfg)
		}
	}
}

func (a *App) reloadOnSignal(ctx context.Context) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, a.hup)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
			a.logger.Info().Str("event", "config.reload_signal").Str("signal", a.hup.String()).Msg("reloading config")
			if err := a.cfgHolder.Reload(context.WithoutCancel(ctx)); err != nil {
				a.logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("config reload failed, keeping current config")
			}
		}
	}
}
