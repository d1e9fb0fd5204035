// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package surface drives player surfaces over websockets. A player page
// connects to the hub, announces itself with hello and then executes load,
// play, pause, playlist, metadata and close commands. Its ended, time and
// metadata reports, and the loss of a surface, are forwarded to the router.
package surface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/ManuGH/chatdj/internal/config"
	"github.com/ManuGH/chatdj/internal/domain/playback/model"
	"github.com/ManuGH/chatdj/internal/domain/playback/ports"
	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/metrics"
	"github.com/ManuGH/chatdj/internal/resilience"
	"github.com/ManuGH/chatdj/internal/router"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	// ErrDetached is returned for commands to a surface that lost its
	// connection but may still re-attach.
	ErrDetached = errors.New("surface detached")

	// ErrRejected is returned when a surface acknowledged a command with an error.
	ErrRejected = errors.New("surface rejected command")

	ErrHubClosed = errors.New("surface hub closed")
)

const reportBuffer = 64

// Config holds hub timings and the destination patterns.
type Config struct {
	ExactPattern    string
	FallbackPattern string
	CommandTimeout  time.Duration
	CreateTimeout   time.Duration
	ReattachGrace   time.Duration
	EndThreshold    time.Duration
	BreakerFailures int
	BreakerReset    time.Duration
	AllowedOrigins  []string
}

// ConfigFromApp maps the surface section of the app config.
func ConfigFromApp(cfg config.SurfaceConfig, allowedOrigins []string) Config {
	return Config{
		ExactPattern:    cfg.ExactPattern,
		FallbackPattern: cfg.FallbackPattern,
		CommandTimeout:  cfg.CommandTimeout,
		CreateTimeout:   cfg.CreateTimeout,
		ReattachGrace:   cfg.ReattachGrace,
		EndThreshold:    cfg.EndThreshold,
		BreakerFailures: cfg.BreakerFailures,
		BreakerReset:    cfg.BreakerReset,
		AllowedOrigins:  allowedOrigins,
	}
}

func (c Config) withDefaults() Config {
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 5 * time.Second
	}
	if c.CreateTimeout <= 0 {
		c.CreateTimeout = 20 * time.Second
	}
	if c.ReattachGrace <= 0 {
		c.ReattachGrace = 5 * time.Second
	}
	if c.EndThreshold <= 0 {
		c.EndThreshold = 500 * time.Millisecond
	}
	return c
}

// Reporter receives surface reports. *router.Router implements it.
type Reporter interface {
	Dispatch(ctx context.Context, req router.Request) router.Response
}

type session struct {
	id      model.Handle
	conn    *wsConn
	gen     uint64
	address string
	ready   bool
	end     endDetector
	pending map[string]chan Message
	grace   *time.Timer
}

// Hub is a ports.SurfaceDriver backed by websocket-connected player pages.
type Hub struct {
	cfg      Config
	exact    *regexp.Regexp
	fallback *regexp.Regexp
	launcher Launcher
	breaker  *resilience.CircuitBreaker
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	reports  chan router.Request

	mu       sync.Mutex
	live     map[*wsConn]struct{}
	surfaces map[model.Handle]*session
	order    []model.Handle
	launches map[string]chan model.Handle
	reporter Reporter
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ ports.SurfaceDriver = (*Hub)(nil)

// NewHub creates a hub and starts its report forwarder.
func NewHub(cfg Config, launcher Launcher) (*Hub, error) {
	cfg = cfg.withDefaults()
	exact, err := compileGlob(cfg.ExactPattern)
	if err != nil {
		return nil, fmt.Errorf("exact pattern: %w", err)
	}
	fallback, err := compileGlob(cfg.FallbackPattern)
	if err != nil {
		return nil, fmt.Errorf("fallback pattern: %w", err)
	}
	if launcher == nil {
		return nil, errors.New("surface: launcher is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:      cfg,
		exact:    exact,
		fallback: fallback,
		launcher: launcher,
		breaker:  resilience.NewCircuitBreaker("surface_launch", cfg.BreakerFailures, cfg.BreakerReset),
		logger:   xglog.WithComponent("surface"),
		reports:  make(chan router.Request, reportBuffer),
		live:     make(map[*wsConn]struct{}),
		surfaces: make(map[model.Handle]*session),
		launches: make(map[string]chan model.Handle),
		ctx:      ctx,
		cancel:   cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	h.wg.Add(1)
	go h.forwardReports()
	return h, nil
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(h.cfg.AllowedOrigins, origin)
}

// SetReporter sets where ended, metadata and surface-closed reports go.
func (h *Hub) SetReporter(r Reporter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reporter = r
}

// track registers a goroutine unless the hub is closing.
func (h *Hub) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.wg.Add(1)
	return true
}

// ServeHTTP upgrades a player page connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.track() {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Str(xglog.FieldEvent, "surface.upgrade_failed").Msg("websocket upgrade failed")
		return
	}
	c := newWSConn(ws)
	h.mu.Lock()
	closing := h.closed
	h.live[c] = struct{}{}
	h.mu.Unlock()
	if closing {
		c.close()
	}
	defer func() {
		h.mu.Lock()
		delete(h.live, c)
		h.mu.Unlock()
	}()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()

	hello, err := c.readHello()
	if err != nil {
		h.logger.Debug().Err(err).Str(xglog.FieldEvent, "surface.hello_failed").Msg("surface did not say hello")
		c.close()
		return
	}

	id, err := h.attach(c, hello)
	if err != nil {
		c.close()
		return
	}
	logger := h.logger.With().Str(xglog.FieldSurfaceID, string(id)).Logger()

	err = c.readLoop(
		func(msg Message) { h.onMessage(id, c, msg) },
		func(err error) {
			logger.Debug().Err(err).Str(xglog.FieldEvent, "surface.bad_frame").Msg("skipping malformed frame")
		},
	)
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Debug().Err(err).Msg("surface connection dropped")
	}
	c.close()
	h.detach(id, c)
}

func (h *Hub) attach(c *wsConn, hello Message) (model.Handle, error) {
	address := normalizeAddress(hello.Address)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrHubClosed
	}

	var s *session
	event := "attached"
	if hello.SurfaceID != "" {
		if existing, ok := h.surfaces[model.Handle(hello.SurfaceID)]; ok {
			s = existing
			event = "reattached"
		} else if _, err := uuid.Parse(hello.SurfaceID); err == nil {
			// Known to a previous daemon run; keep the id so a persisted
			// handle stays valid.
			s = h.newSessionLocked(model.Handle(hello.SurfaceID))
			event = "reattached"
		}
	}
	if s == nil {
		s = h.newSessionLocked(model.Handle(uuid.NewString()))
	}

	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	var replaced *wsConn
	if s.conn != nil && s.conn != c {
		replaced = s.conn
		h.failPendingLocked(s)
	}
	s.conn = c
	s.gen++
	if address != s.address {
		s.end.reset(address)
	}
	s.address = address
	s.ready = hello.Ready

	var waiter chan model.Handle
	if hello.Token != "" {
		waiter = h.launches[hello.Token]
		delete(h.launches, hello.Token)
	}
	h.updateGaugeLocked()
	h.mu.Unlock()

	if replaced != nil {
		replaced.close()
	}
	_ = c.enqueue(Message{Type: TypeWelcome, SurfaceID: string(s.id)})
	if waiter != nil {
		waiter <- s.id
	}

	metrics.IncSurfaceSession(event)
	h.logger.Info().
		Str(xglog.FieldEvent, "surface."+event).
		Str(xglog.FieldSurfaceID, string(s.id)).
		Str(xglog.FieldAddress, address).
		Bool("ready", hello.Ready).
		Msg("player surface connected")
	return s.id, nil
}

func (h *Hub) newSessionLocked(id model.Handle) *session {
	s := &session{
		id:      id,
		pending: make(map[string]chan Message),
		end:     endDetector{threshold: h.cfg.EndThreshold},
	}
	s.end.reset("")
	h.surfaces[id] = s
	h.order = append(h.order, id)
	return s
}

// detach starts the reattach grace period for a dropped connection.
func (h *Hub) detach(id model.Handle, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.surfaces[id]
	if !ok || s.conn != c {
		return
	}
	s.conn = nil
	s.ready = false
	h.failPendingLocked(s)
	h.updateGaugeLocked()
	if h.closed {
		return
	}
	gen := s.gen
	s.grace = time.AfterFunc(h.cfg.ReattachGrace, func() { h.expire(id, gen) })

	metrics.IncSurfaceSession("detached")
	h.logger.Info().
		Str(xglog.FieldEvent, "surface.detached").
		Str(xglog.FieldSurfaceID, string(id)).
		Dur("grace", h.cfg.ReattachGrace).
		Msg("player surface disconnected")
}

// expire forgets a surface that did not re-attach and reports it closed.
func (h *Hub) expire(id model.Handle, gen uint64) {
	h.mu.Lock()
	s, ok := h.surfaces[id]
	if !ok || s.conn != nil || s.gen != gen || h.closed {
		h.mu.Unlock()
		return
	}
	h.removeLocked(id)
	h.mu.Unlock()

	metrics.IncSurfaceSession("expired")
	h.logger.Info().
		Str(xglog.FieldEvent, "surface.closed").
		Str(xglog.FieldSurfaceID, string(id)).
		Msg("player surface gone")
	h.report(router.Request{Kind: router.KindSurfaceClosed, Handle: id, Source: string(id)})
}

func (h *Hub) removeLocked(id model.Handle) *session {
	s, ok := h.surfaces[id]
	if !ok {
		return nil
	}
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	h.failPendingLocked(s)
	delete(h.surfaces, id)
	h.order = slices.DeleteFunc(h.order, func(x model.Handle) bool { return x == id })
	h.updateGaugeLocked()
	return s
}

func (h *Hub) failPendingLocked(s *session) {
	for _, ch := range s.pending {
		close(ch)
	}
	s.pending = make(map[string]chan Message)
}

func (h *Hub) updateGaugeLocked() {
	metrics.SetSurfacesConnected(h.connectedLocked())
}

func (h *Hub) connectedLocked() int {
	n := 0
	for _, s := range h.surfaces {
		if s.conn != nil {
			n++
		}
	}
	return n
}

// Connected returns the number of attached player surfaces.
func (h *Hub) Connected() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connectedLocked()
}

func (h *Hub) onMessage(id model.Handle, c *wsConn, msg Message) {
	switch msg.Type {
	case TypeAck:
		h.mu.Lock()
		var ch chan Message
		if s, ok := h.surfaces[id]; ok && s.conn == c {
			ch = s.pending[msg.RequestID]
			delete(s.pending, msg.RequestID)
		}
		h.mu.Unlock()
		if ch != nil {
			ch <- msg
		}

	case TypeLocation:
		address := normalizeAddress(msg.Address)
		h.mu.Lock()
		if s, ok := h.surfaces[id]; ok && s.conn == c {
			if address != s.address {
				s.end.reset(address)
			}
			s.address = address
			s.ready = msg.Ready
		}
		h.mu.Unlock()

	case TypeTime, TypeEnded:
		address := normalizeAddress(msg.Address)
		fired := false
		h.mu.Lock()
		if s, ok := h.surfaces[id]; ok && s.conn == c {
			if msg.Type == TypeTime {
				fired = s.end.observeTime(address, msg.CurrentTime, msg.Duration, msg.Paused)
			} else {
				fired = s.end.observeEnded(address)
			}
			address = s.end.address
		}
		h.mu.Unlock()
		if fired {
			metrics.IncEndDetected(msg.Type)
			h.report(router.Request{Kind: router.KindItemEnded, Address: address, Source: string(id)})
		}

	case TypeMetadata:
		md := model.Metadata{Title: msg.Title, DurationSeconds: msg.DurationSeconds}
		if !md.Complete() {
			return
		}
		h.report(router.Request{
			Kind:            router.KindMetadataReport,
			Address:         normalizeAddress(msg.Address),
			Title:           md.Title,
			DurationSeconds: md.DurationSeconds,
			Source:          string(id),
		})

	case TypeHello:
		// Repeated hello on a live connection carries nothing new.
	default:
		h.logger.Debug().
			Str(xglog.FieldSurfaceID, string(id)).
			Str("type", msg.Type).
			Msg("ignoring unknown message type")
	}
}

// report queues req for the forwarder without blocking the read loop.
func (h *Hub) report(req router.Request) {
	select {
	case h.reports <- req:
	default:
		metrics.IncBusDropReason("surface_reports", "buffer_full")
		h.logger.Warn().
			Str(xglog.FieldEvent, "surface.report_dropped").
			Str(xglog.FieldKind, string(req.Kind)).
			Msg("report buffer full")
	}
}

func (h *Hub) forwardReports() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case req := <-h.reports:
			h.mu.Lock()
			rep := h.reporter
			h.mu.Unlock()
			if rep == nil {
				h.logger.Warn().Str(xglog.FieldKind, string(req.Kind)).Msg("no reporter configured, dropping report")
				continue
			}
			if resp := rep.Dispatch(h.ctx, req); !resp.OK() {
				h.logger.Debug().
					Str(xglog.FieldKind, string(req.Kind)).
					Str("code", resp.Code).
					Str("error", resp.Error).
					Msg("report not accepted")
			}
		}
	}
}

// Shutdown disconnects every surface and waits for connection goroutines.
// No surface-closed report is sent for surfaces dropped this way.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for _, s := range h.surfaces {
		if s.grace != nil {
			s.grace.Stop()
			s.grace = nil
		}
	}
	conns := make([]*wsConn, 0, len(h.live))
	for c := range h.live {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.cancel()
	for _, c := range conns {
		c.close()
	}
	h.wg.Wait()
}
