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
	advanceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatdj_advance_total",
		Help: "Advance passes by outcome",
	}, []string{"outcome"}) // outcome=bound|idle|failed|aborted|superseded

	advanceDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatdj_advance_dropped_total",
		Help: "Advance triggers dropped because another advance was in flight",
	})

	advanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatdj_advance_duration_seconds",
		Help:    "Wall time of a guarded advance section",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
	})

	staleEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatdj_stale_events_total",
		Help: "Events discarded because they no longer match the current item or surface",
	}, []string{"kind"}) // kind=metadata|ended|surface_closed

	disqualifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatdj_disqualified_total",
		Help: "Items skipped because their duration exceeded the limit",
	})

	metadataFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatdj_metadata_fallback_total",
		Help: "Metadata fetches that gave up and used the unknown placeholder",
	})

	queueItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatdj_queue_items",
		Help: "Number of queued items",
	})

	playedItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatdj_played_items",
		Help: "Number of played items",
	})

	surfaceOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatdj_surface_ops_total",
		Help: "Surface driver operations by op and result",
	}, []string{"op", "result"}) // result=success|failure

	persistErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatdj_persist_errors_total",
		Help: "Failed snapshot writes",
	})
)

// RecordAdvance records one advance pass.
func RecordAdvance(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	advanceTotal.WithLabelValues(outcome).Inc()
}

// IncAdvanceDropped records a trigger that found the guard held.
func IncAdvanceDropped() { advanceDroppedTotal.Inc() }

// ObserveAdvanceDuration records how long the guard was held.
func ObserveAdvanceDuration(d time.Duration) { advanceDuration.Observe(d.Seconds()) }

// IncStaleEvent records a discarded late event.
func IncStaleEvent(kind string) { staleEventsTotal.WithLabelValues(kind).Inc() }

// IncDisqualified records an over-long item being skipped.
func IncDisqualified() { disqualifiedTotal.Inc() }

// IncMetadataFallback records a metadata fetch that exhausted its attempts.
func IncMetadataFallback() { metadataFallbackTotal.Inc() }

// SetQueueSize updates the queue gauges.
func SetQueueSize(items, played int) {
	queueItems.Set(float64(items))
	playedItems.Set(float64(played))
}

// RecordSurfaceOp records a driver call outcome.
func RecordSurfaceOp(op string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	surfaceOpsTotal.WithLabelValues(op, result).Inc()
}

// IncPersistError records a failed snapshot write.
func IncPersistError() { persistErrorsTotal.Inc() }
