// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusDroppedTotal is exported so bus tests can read it back.
var BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatdj_bus_dropped_total",
	Help: "Bus messages a slow subscriber never received",
}, []string{"topic", "reason"})

// result is delivered, exhausted or superseded.
var notifyDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatdj_notify_deliveries_total",
	Help: "Final outcome of each playlist view push, per destination",
}, []string{"destination", "result"})

// IncBusDropReason counts one dropped message. Empty labels become "unknown".
func IncBusDropReason(topic, reason string) {
	BusDroppedTotal.WithLabelValues(orUnknown(topic), orUnknown(reason)).Inc()
}

// RecordNotifyDelivery counts the final outcome of one push.
func RecordNotifyDelivery(destination, result string) {
	notifyDeliveries.WithLabelValues(destination, result).Inc()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
