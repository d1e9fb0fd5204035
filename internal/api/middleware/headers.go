// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"strings"
)

// DefaultCSP allows same-origin content plus websocket connections back to
// the daemon.
const DefaultCSP = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self' ws: wss:; frame-ancestors 'none'"

const (
	corsMethods = "GET, POST, OPTIONS"
	corsVary    = "Origin, Access-Control-Request-Method, Access-Control-Request-Headers"
)

// originSet is an allow list of browser origins. "*" admits all of them.
type originSet map[string]struct{}

func newOriginSet(origins []string) originSet {
	s := make(originSet, len(origins))
	for _, o := range origins {
		s[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	return s
}

func (s originSet) allows(origin string) bool {
	if _, ok := s["*"]; ok {
		return true
	}
	_, ok := s[origin]
	return ok
}

// CORS echoes allowed origins back and answers preflight requests itself.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := newOriginSet(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if o := r.Header.Get("Origin"); o != "" && allowed.allows(strings.TrimSuffix(o, "/")) {
				h.Set("Access-Control-Allow-Origin", o)
			}
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderRequestID)
			h.Set("Access-Control-Expose-Headers", "Retry-After, "+HeaderRequestID)
			h.Set("Access-Control-Max-Age", "600")
			switch vary := h.Get("Vary"); {
			case vary == "":
				h.Set("Vary", corsVary)
			case !strings.Contains(vary, "Origin"):
				h.Set("Vary", vary+", Origin")
			}

			if r.Method == http.MethodOptions {
				h.Set("Allow", corsMethods)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets the hardening headers on every response. An empty
// csp means DefaultCSP. HSTS is only sent over TLS or behind a proxy that
// terminated it.
func SecurityHeaders(csp string) func(http.Handler) http.Handler {
	if csp == "" {
		csp = DefaultCSP
	}
	fixed := [][2]string{
		{"Content-Security-Policy", csp},
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, kv := range fixed {
				w.Header().Set(kv[0], kv[1])
			}
			if requestScheme(r) == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestScheme(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return strings.ToLower(p)
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
