// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/chatdj/internal/config"
	"github.com/rs/zerolog"
)

// ShutdownHook releases one component. Hooks run in reverse registration
// order after the HTTP listeners have stopped.
type ShutdownHook func(ctx context.Context) error

// Manager owns the HTTP listeners and the shutdown sequence.
type Manager interface {
	// Start binds the listeners and serves until ctx ends or a listener
	// fails, then shuts down.
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
}

// stopBudget bounds the shutdown Start performs on its own.
const stopBudget = 30 * time.Second

type endpoint struct {
	name string
	srv  *http.Server
}

type namedHook struct {
	name string
	fn   ShutdownHook
}

type manager struct {
	cfg    config.ServerConfig
	deps   Deps
	logger zerolog.Logger

	mu        sync.Mutex
	endpoints []endpoint
	hooks     []namedHook
	started   bool
	stopping  bool
}

// NewManager validates deps and returns a Manager that has not bound anything yet.
func NewManager(cfg config.ServerConfig, deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		cfg:    cfg.Normalized(),
		deps:   deps,
		logger: deps.Logger.With().Str("component", "manager").Logger(),
	}, nil
}

func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("start context is nil")
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("event", "manager.start").
		Str("api_addr", m.deps.APIAddr).
		Bool("metrics", m.deps.metricsEnabled()).
		Dur("shutdown_timeout", m.cfg.ShutdownTimeout).
		Msg("starting listeners")

	failed := make(chan error, 2)
	serveErr := m.serve("api", m.deps.APIAddr, m.apiServer(), failed)
	if serveErr == nil && m.deps.metricsEnabled() {
		serveErr = m.serve("metrics", m.deps.MetricsAddr, &http.Server{
			Handler:           m.deps.MetricsHandler,
			ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		}, failed)
	}

	cause := serveErr
	if cause == nil {
		select {
		case cause = <-failed:
		case <-ctx.Done():
			m.logger.Info().Str("event", "manager.stop_requested").Msg("shutdown requested")
		}
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopBudget)
	defer cancel()
	stopErr := m.Shutdown(stopCtx)
	if cause != nil {
		m.logger.Error().Err(cause).Str("event", "manager.listener_failed").Msg("listener failed, shut down")
		return errors.Join(cause, stopErr)
	}
	return stopErr
}

func (m *manager) apiServer() *http.Server {
	return &http.Server{
		Handler:           m.deps.APIHandler,
		ReadTimeout:       m.cfg.ReadTimeout,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		WriteTimeout:      m.cfg.WriteTimeout,
		IdleTimeout:       m.cfg.IdleTimeout,
		MaxHeaderBytes:    m.cfg.MaxHeaderBytes,
	}
}

// serve binds addr synchronously, so a port conflict fails Start directly,
// and serves in the background. Later serve errors go to failed.
func (m *manager) serve(name, addr string, srv *http.Server, failed chan<- error) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s listener: %w", name, err)
	}
	srv.Addr = ln.Addr().String()

	m.mu.Lock()
	m.endpoints = append(m.endpoints, endpoint{name: name, srv: srv})
	m.mu.Unlock()

	m.logger.Info().Str("event", name+".listening").Str("addr", srv.Addr).Msg("listening")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
	return nil
}

// Shutdown stops the listeners, then runs the hooks newest first. Errors
// from every step are joined. A second call is a no-op.
func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown context is nil")
	}
	m.mu.Lock()
	switch {
	case m.stopping:
		m.mu.Unlock()
		return nil
	case !m.started:
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	endpoints := append([]endpoint(nil), m.endpoints...)
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	// Hijacked websockets are invisible to http.Server; hooks close them.
	for _, ep := range endpoints {
		if err := ep.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s server: %w", ep.name, err))
		}
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		began := time.Now()
		if err := h.fn(ctx); err != nil {
			m.logger.Error().Err(err).Str("hook", h.name).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		m.logger.Debug().Str("hook", h.name).Dur("took", time.Since(began)).Msg("shutdown hook done")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Str("event", "manager.stopped").Msg("stopped cleanly")
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, fn: hook})
}
