// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package middleware provides HTTP middleware for the command API.
package middleware

import (
	"time"

	xglog "github.com/ManuGH/chatdj/internal/log"
	"github.com/go-chi/chi/v5"
)

// StackConfig selects the optional layers of the ingress stack. Recovery,
// request ids and CSRF checks are always on.
type StackConfig struct {
	EnableCORS     bool
	AllowedOrigins []string

	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	RequestsPerMinute int // zero disables the limiter
}

// NewRouter returns a chi router with the stack installed.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack installs the stack on r, outermost first.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer, RequestID)
	if cfg.EnableCORS {
		r.Use(CORS(cfg.AllowedOrigins))
	}
	r.Use(CSRFProtection(cfg.AllowedOrigins))
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(xglog.Middleware())
	}
	if cfg.RequestsPerMinute > 0 {
		r.Use(RateLimit(cfg.RequestsPerMinute, time.Minute))
	}
}
