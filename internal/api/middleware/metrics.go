// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatdj_http_request_duration_seconds",
		Help:    "API request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	apiInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatdj_http_requests_in_flight",
		Help: "API requests currently being served",
	})

	apiBodyBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatdj_http_request_size_bytes",
		Help:    "Declared request body size",
		Buckets: prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})
)

// Metrics observes every request under its chi route pattern. chi's
// wrapper still implements http.Hijacker, so websocket upgrades work.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiInFlight.Inc()
			defer apiInFlight.Dec()

			began := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := routeOf(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			apiLatency.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(began).Seconds())
			if r.ContentLength > 0 {
				apiBodyBytes.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
			}
		})
	}
}
