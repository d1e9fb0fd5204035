// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatdj_router_requests_total",
		Help: "Dispatched requests by kind and status",
	}, []string{"kind", "status"})

	routerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatdj_router_request_duration_seconds",
		Help:    "Handler time per request kind, excluding time spent buffered",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	routerBufferedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatdj_router_buffered_total",
		Help: "Requests buffered because state was still loading",
	})

	routerPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatdj_router_panics_total",
		Help: "Handler panics converted into error responses",
	}, []string{"kind"})
)

// RecordRouterRequest records a finished request.
func RecordRouterRequest(kind, status string, d time.Duration) {
	routerRequestsTotal.WithLabelValues(kind, status).Inc()
	routerRequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func IncRouterBuffered() { routerBufferedTotal.Inc() }

func IncRouterPanic(kind string) { routerPanicsTotal.WithLabelValues(kind).Inc() }
