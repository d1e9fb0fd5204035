// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health provides the liveness and readiness endpoints of the daemon.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/chatdj/internal/log"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of one check or of a whole probe.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// worse returns the more severe of a and b.
func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// CheckResult is what a Checker reports.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    int64                  `json:"uptimeSeconds"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the /readyz body.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one named component probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// checkTimeout bounds every individual check.
const checkTimeout = 2 * time.Second

// Manager runs the registered checkers. Register everything before serving.
type Manager struct {
	version  string
	started  time.Time
	checkers []Checker
}

// NewManager returns a Manager reporting version.
func NewManager(version string) *Manager {
	return &Manager{version: version, started: time.Now()}
}

// RegisterChecker adds c to both probes.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// runChecks runs all checkers concurrently and returns their results with the
// worst status among them.
func (m *Manager) runChecks(ctx context.Context) (map[string]CheckResult, Status) {
	results := make([]CheckResult, len(m.checkers))
	var g errgroup.Group
	for i, c := range m.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			results[i] = c.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]CheckResult, len(results))
	overall := StatusHealthy
	for i, c := range m.checkers {
		out[c.Name()] = results[i]
		overall = worse(overall, results[i].Status)
	}
	return out, overall
}

// Health is the liveness view. The process is alive whenever it can answer,
// so checks only run, and only influence Status, when verbose is set.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
		Uptime:    int64(time.Since(m.started).Seconds()),
	}
	if verbose && len(m.checkers) > 0 {
		resp.Checks, resp.Status = m.runChecks(ctx)
	}
	return resp
}

// Ready is the readiness view. Any unhealthy check makes the daemon not
// ready; degraded checks only lower Status.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{Ready: true, Status: StatusHealthy, Timestamp: time.Now()}
	if len(m.checkers) == 0 {
		return resp
	}
	resp.Checks, resp.Status = m.runChecks(ctx)
	resp.Ready = resp.Status != StatusUnhealthy
	return resp
}

// ServeHealth answers /healthz. It is always 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	resp := m.Health(r.Context(), verbose)
	writeProbe(w, r, "health", http.StatusOK, resp)
}

// ServeReady answers /readyz with 200 or 503.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
		logger := log.WithComponentFromContext(r.Context(), "health")
		logger.Debug().
			Str("event", "readiness.not_ready").
			Interface("checks", resp.Checks).
			Msg("not ready")
	}
	writeProbe(w, r, "readiness", code, resp)
}

func writeProbe(w http.ResponseWriter, r *http.Request, probe string, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "health")
		logger.Error().Err(err).
			Str("event", probe+".encode_error").
			Msg("failed to encode probe response")
	}
}

// checkFunc adapts a function to Checker.
type checkFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func (c checkFunc) Name() string                          { return c.name }
func (c checkFunc) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// Pinger is anything that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingChecker is unhealthy while p.Ping fails.
func NewPingChecker(name string, p Pinger) Checker {
	return checkFunc{name: name, fn: func(ctx context.Context) CheckResult {
		if err := p.Ping(ctx); err != nil {
			return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
		}
		return CheckResult{Status: StatusHealthy, Message: "reachable"}
	}}
}

// NewLoadedChecker is unhealthy until the persisted queue state is loaded.
// Requests arriving before that are buffered, not lost.
func NewLoadedChecker(loaded func() bool) Checker {
	return checkFunc{name: "state", fn: func(context.Context) CheckResult {
		if !loaded() {
			return CheckResult{Status: StatusUnhealthy, Message: "queue state not loaded yet"}
		}
		return CheckResult{Status: StatusHealthy, Message: "queue state loaded"}
	}}
}

// NewSurfaceChecker is degraded while no player surface is connected. The
// daemon still accepts links then, playback just has to launch a surface.
func NewSurfaceChecker(connected func() int) Checker {
	return checkFunc{name: "surfaces", fn: func(context.Context) CheckResult {
		n := connected()
		if n == 0 {
			return CheckResult{Status: StatusDegraded, Message: "no player surface connected"}
		}
		return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d player surface(s) connected", n)}
	}}
}
