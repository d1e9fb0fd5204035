// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/chatdj/internal/log"
	"github.com/go-chi/chi/v5"
)

// reject writes the API error envelope for a request the stack refuses.
// Layers outside RequestID find the id on the response headers instead.
func reject(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	id := log.RequestIDFromContext(r.Context())
	if id == "" {
		id = w.Header().Get(HeaderRequestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":     msg,
		"code":      code,
		"requestId": id,
	})
}

// routeOf returns the chi pattern that matched r, or the raw path before
// routing has happened.
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
