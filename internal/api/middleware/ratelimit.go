// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/chatdj/internal/log"
	"github.com/go-chi/httprate"
)

// RateLimit admits perWindow requests per client IP in a sliding window.
// Excess requests get the JSON 429 envelope and a Retry-After of one window.
func RateLimit(perWindow int, window time.Duration) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return httprate.Limit(perWindow, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger := log.WithComponentFromContext(r.Context(), "ratelimit")
			logger.Debug().
				Str(log.FieldEvent, "http.rate_limited").
				Str(log.FieldPath, r.URL.Path).
				Msg("over the limit")
			w.Header().Set("Retry-After", retryAfter)
			reject(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
		}),
	)
}
