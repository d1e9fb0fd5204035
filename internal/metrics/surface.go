// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	surfacesConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatdj_surfaces_connected",
		Help: "Player surfaces with a live websocket",
	})

	surfaceSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatdj_surface_sessions_total",
		Help: "Surface session transitions",
	}, []string{"event"}) // event=attached|reattached|detached|expired|closed

	surfaceLaunchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatdj_surface_launches_total",
		Help: "Browser launches for new player surfaces",
	}, []string{"result"}) // result=connected|failed|timeout|rejected

	endDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatdj_end_detected_total",
		Help: "End-of-playback detections by source",
	}, []string{"source"}) // source=ended|time

	procSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatdj_proc_signals_total",
		Help: "Signals sent to launched helper process groups",
	}, []string{"signal", "result"})
)

// SetSurfacesConnected sets the number of attached surfaces.
func SetSurfacesConnected(n int) { surfacesConnected.Set(float64(n)) }

func IncSurfaceSession(event string) { surfaceSessionsTotal.WithLabelValues(event).Inc() }

func IncSurfaceLaunch(result string) { surfaceLaunchesTotal.WithLabelValues(result).Inc() }

func IncEndDetected(source string) { endDetectedTotal.WithLabelValues(source).Inc() }

func RecordProcSignal(signal, result string) {
	procSignalsTotal.WithLabelValues(signal, result).Inc()
}
