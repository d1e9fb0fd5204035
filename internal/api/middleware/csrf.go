// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ManuGH/chatdj/internal/log"
)

// CSRFProtection refuses writes from a browser page on a foreign origin.
// Same-origin pages and allow-listed origins pass. A request carrying
// neither Origin nor Referer is not from a browser (the chat observer,
// curl) and passes as well.
func CSRFProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := newOriginSet(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWrite(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			origin := browserOrigin(r)
			if origin == "" || allowed.allows(origin) || origin == requestScheme(r)+"://"+r.Host {
				next.ServeHTTP(w, r)
				return
			}
			logger := log.WithComponentFromContext(r.Context(), "csrf")
			logger.Warn().
				Str(log.FieldEvent, "csrf.rejected").
				Str("origin", origin).
				Str(log.FieldPath, r.URL.Path).
				Msg("cross-origin write refused")
			reject(w, r, http.StatusForbidden, "forbidden", "cross-origin request not allowed")
		})
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// browserOrigin reads Origin, falling back to the scheme and host of
// Referer. A Referer that does not parse yields "null".
func browserOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return strings.TrimSuffix(o, "/")
	}
	ref := r.Header.Get("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return "null"
	}
	return u.Scheme + "://" + u.Host
}
