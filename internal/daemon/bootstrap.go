// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires the playback services together and owns their
// lifecycle.
package daemon

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ManuGH/chatdj/internal/api"
	"github.com/ManuGH/chatdj/internal/bus"
	"github.com/ManuGH/chatdj/internal/config"
	"github.com/ManuGH/chatdj/internal/domain/playback/controller"
	"github.com/ManuGH/chatdj/internal/health"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/notify"
	"github.com/ManuGH/chatdj/internal/playlist"
	"github.com/ManuGH/chatdj/internal/ratelimit"
	"github.com/ManuGH/chatdj/internal/router"
	"github.com/ManuGH/chatdj/internal/store"
	"github.com/ManuGH/chatdj/internal/surface"
	"github.com/ManuGH/chatdj/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// launcherGrace is how long launched browser processes get after SIGTERM.
const launcherGrace = 3 * time.Second

// Container is the composition root output.
type Container struct {
	Config    config.AppConfig
	Logger    zerolog.Logger
	Telemetry *telemetry.Provider

	Store      store.Adapter
	Launcher   *surface.ExecLauncher
	Hub        *surface.Hub
	Bus        *bus.MemoryBus
	Notifier   *notify.Notifier
	Controller *controller.Controller
	Limiter    *ratelimit.Limiter
	Router     *router.Router
	Health     *health.Manager
	API        *api.Server
	Manager    Manager
}

// WireServices builds the dependency graph. Nothing listens until
// Manager.Start; state is restored by Restore.
func WireServices(ctx context.Context, cfg config.AppConfig) (c *Container, err error) {
	if ctx == nil {
		return nil, fmt.Errorf("wire services context is nil")
	}
	logger := xglog.WithComponent("bootstrap")

	if configBytes, marshalErr := json.Marshal(cfg); marshalErr == nil {
		hash := sha256.Sum256(configBytes)
		logger.Info().
			Str("event", "config.snapshot").
			Str("sha256", fmt.Sprintf("%x", hash)).
			Msg("configuration snapshot fingerprint")
	}

	c = &Container{Config: cfg, Logger: logger}
	// Undo partial wiring on failure.
	var undo []func()
	defer func() {
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				undo[i]()
			}
		}
	}()

	c.Telemetry, err = telemetry.NewProvider(ctx, telemetry.FromAppConfig(cfg.Telemetry, cfg.Version))
	if err != nil {
		logger.Warn().Err(err).Str("event", "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
		c.Telemetry = nil
		err = nil
	}

	c.Store, err = store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	undo = append(undo, func() { _ = c.Store.Close() })

	c.Launcher = surface.NewExecLauncher(cfg.Surface.LaunchCommand, cfg.Surface.LaunchArgs)
	c.Hub, err = surface.NewHub(surface.ConfigFromApp(cfg.Surface, cfg.API.AllowedOrigins), c.Launcher)
	if err != nil {
		return nil, fmt.Errorf("surface hub: %w", err)
	}
	undo = append(undo, c.Hub.Shutdown, func() { c.Launcher.Shutdown(launcherGrace) })

	c.Bus = bus.NewMemoryBus()
	c.Notifier = notify.New(notify.PolicyFromConfig(cfg.Notify),
		notify.DisplayDestination{Bus: c.Bus},
		notify.PlayerDestination{Driver: c.Hub},
	)
	undo = append(undo, c.Notifier.Close)

	c.Controller, err = controller.New(controller.Deps{
		Driver:   c.Hub,
		Store:    c.Store,
		Notifier: c.Notifier,
		Policy:   controller.PolicyFromConfig(cfg),
	})
	if err != nil {
		return nil, err
	}
	undo = append(undo, c.Controller.Close)

	playlists := playlist.NewFiles(filepath.Join(cfg.DataDir, "playlists"))
	c.Limiter = ratelimit.New(ratelimit.ConfigFromApp(cfg.Ingress))
	c.Router = router.New(c.Controller, router.Options{
		Playlists: playlists,
		Limiter:   c.Limiter,
	})
	c.Hub.SetReporter(c.Router)

	c.Health = health.NewManager(cfg.Version)
	c.Health.RegisterChecker(health.NewPingChecker("store", c.Store))
	c.Health.RegisterChecker(health.NewLoadedChecker(c.Router.Loaded))
	c.Health.RegisterChecker(health.NewSurfaceChecker(c.Hub.Connected))

	c.API, err = api.New(api.ConfigFromApp(cfg), api.Deps{
		Router:    c.Router,
		Views:     c.Controller,
		Bus:       c.Bus,
		Surfaces:  c.Hub,
		Playlists: playlists,
		Health:    c.Health,
	})
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	undo = append(undo, c.API.Shutdown)

	deps := Deps{
		Logger:     xglog.WithComponent("daemon"),
		APIAddr:    cfg.API.ListenAddr,
		APIHandler: c.API.Handler(),
	}
	if cfg.Metrics.Enabled {
		deps.MetricsAddr = cfg.Metrics.ListenAddr
		deps.MetricsHandler = promhttp.Handler()
	}
	c.Manager, err = NewManager(cfg.Server, deps)
	if err != nil {
		return nil, err
	}
	c.registerShutdownHooks()
	return c, nil
}

// registerShutdownHooks stops components in reverse wiring order: displays
// and surfaces first, then the controller, the notifier and the store.
func (c *Container) registerShutdownHooks() {
	if c.Telemetry != nil {
		c.Manager.RegisterShutdownHook("telemetry", c.Telemetry.Shutdown)
	}
	c.Manager.RegisterShutdownHook("store", func(context.Context) error {
		return c.Store.Close()
	})
	c.Manager.RegisterShutdownHook("notifier", func(context.Context) error {
		c.Notifier.Close()
		return nil
	})
	c.Manager.RegisterShutdownHook("controller", func(context.Context) error {
		c.Controller.Close()
		return nil
	})
	c.Manager.RegisterShutdownHook("launcher", func(context.Context) error {
		c.Launcher.Shutdown(launcherGrace)
		return nil
	})
	c.Manager.RegisterShutdownHook("surfaces", func(context.Context) error {
		c.Hub.Shutdown()
		return nil
	})
	c.Manager.RegisterShutdownHook("displays", func(context.Context) error {
		c.API.Shutdown()
		return nil
	})
}

// Restore loads the persisted snapshot and opens the router. Requests that
// arrived while loading are replayed in order. A backend read error is
// logged and the controller continues from defaults.
func (c *Container) Restore(ctx context.Context) {
	if err := c.Controller.Load(ctx); err != nil {
		c.Logger.Error().Err(err).Str("event", "state.load_failed").Msg("starting from defaults")
	}
	c.Router.MarkLoaded()
}

// ApplyConfig pushes the hot-reloadable sections of cfg into the running
// components.
func (c *Container) ApplyConfig(cfg config.AppConfig) {
	c.Controller.SetPolicy(controller.PolicyFromConfig(cfg))
	c.Notifier.SetPolicy(notify.PolicyFromConfig(cfg.Notify))
	c.Limiter.SetConfig(ratelimit.ConfigFromApp(cfg.Ingress))
	xglog.Reconfigure(xglog.Config{Level: cfg.LogLevel, Service: "chatdj", Version: cfg.Version})
	c.Logger.Info().Str("event", "config.applied").Msg("applied reloaded configuration")
}

// errNotWired is returned by Run on a zero Container.
var errNotWired = errors.New("container is not wired")
