// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// breakerStates lists every state label so the gauge stays one-hot.
var breakerStates = [...]string{"closed", "half-open", "open"}

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatdj_breaker_state",
		Help: "1 for the breaker's current state, 0 for the others",
	}, []string{"breaker", "state"})

	breakerOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatdj_breaker_opened_total",
		Help: "Times a breaker opened, by cause",
	}, []string{"breaker", "cause"})
)

// SetBreakerState marks state as the active one for the named breaker.
func SetBreakerState(name, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(name, s).Set(v)
	}
}

// IncBreakerOpened counts one transition to open.
func IncBreakerOpened(name, cause string) {
	breakerOpened.WithLabelValues(name, cause).Inc()
}
