// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the command API, the display websocket and the
// surface websocket.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/ManuGH/chatdj/internal/api/middleware"
	"github.com/ManuGH/chatdj/internal/bus"
	"github.com/ManuGH/chatdj/internal/config"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/health"
	"github.com/ManuGH/chatdj/internal/router"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Dispatcher routes one request to the controller.
type Dispatcher interface {
	Dispatch(ctx context.Context, req router.Request) router.Response
}

// Viewer supplies the current playlist view for newly connected displays.
type Viewer interface {
	View() model.PlaylistView
}

// PlaylistLister lists saved playlists.
type PlaylistLister interface {
	List() ([]string, error)
}

// Config holds the HTTP surface settings.
type Config struct {
	AllowedOrigins    []string
	TrustedProxies    []string
	RequestsPerMinute int
	TracingService    string
	EnableMetrics     bool
}

// ConfigFromApp derives the API config.
func ConfigFromApp(cfg config.AppConfig) Config {
	c := Config{
		AllowedOrigins: cfg.API.AllowedOrigins,
		TrustedProxies: cfg.API.TrustedProxies,
		EnableMetrics:  cfg.Metrics.Enabled,
	}
	if cfg.API.RateLimit.Enabled {
		c.RequestsPerMinute = cfg.API.RateLimit.RequestsPerMinute
	}
	if cfg.Telemetry.Enabled {
		c.TracingService = "chatdj-api"
	}
	return c
}

// Deps are the collaborators behind the routes. Router, Views and Bus are
// required.
type Deps struct {
	Router    Dispatcher
	Views     Viewer
	Bus       bus.Bus
	Surfaces  http.Handler
	Playlists PlaylistLister
	Health    *health.Manager
}

// Server owns the HTTP handler and the display connections.
type Server struct {
	cfg      Config
	deps     Deps
	proxies  proxySet
	upgrader websocket.Upgrader
	handler  http.Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	displays map[*websocket.Conn]struct{}
}

// New builds the server.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Router == nil || deps.Views == nil || deps.Bus == nil {
		return nil, errors.New("api: router, views and bus are required")
	}
	proxies, err := parseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	if deps.Health == nil {
		deps.Health = health.NewManager("")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		proxies:  proxies,
		ctx:      ctx,
		cancel:   cancel,
		displays: make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        s.cfg.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         s.cfg.EnableMetrics,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
		RequestsPerMinute:     s.cfg.RequestsPerMinute,
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)

	if s.deps.Surfaces != nil {
		r.Handle("/ws/surface", s.deps.Surfaces)
	}
	r.Get("/ws/display", s.serveDisplay)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/links", s.handleAddLinks)
		r.Get("/state", s.handleState)

		r.Post("/playback/start", s.handleSimple(router.KindStart))
		r.Post("/playback/stop", s.handleSimple(router.KindStop))
		r.Post("/playback/skip", s.handleSimple(router.KindSkip))
		r.Post("/playback/ended", s.handleEnded)
		r.Post("/playback/metadata", s.handleMetadata)

		r.Post("/queue/clear", s.handleSimple(router.KindClear))
		r.Post("/queue/remove", s.handleRemove)
		r.Post("/queue/move", s.handleMove)
		r.Get("/queue/export", s.handleExport)
		r.Post("/queue/import", s.handleImport)
		r.Post("/queue/save", s.handleNamed(router.KindSave))
		r.Post("/queue/load", s.handleNamed(router.KindLoad))
		r.Get("/queue/saved", s.handleSaved)

		r.Post("/surfaces/closed", s.handleSurfaceClosed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, router.CodeNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, router.CodeInvalid, "method not allowed")
	})
	return r
}

// Shutdown disconnects display surfaces and waits for their goroutines.
// The HTTP listener is shut down by its owner.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := make([]*websocket.Conn, 0, len(s.displays))
	for c := range s.displays {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	for _, c := range conns {
		_ = c.Close()
	}
	s.wg.Wait()
}
