// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys. HTTP keys follow the pre-1.20 semconv names so
// existing dashboards keep matching.
const (
	HTTPMethodKey     = "http.method"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPStatusCodeKey = "http.status_code"

	PlaybackAddressKey = "playback.address"
	PlaybackCursorKey  = "playback.cursor"
	PlaybackQueueKey   = "playback.queue_len"
	PlaybackOutcomeKey = "playback.outcome"

	CommandKindKey = "command.kind"
)

// HTTPAttributes labels a server span once routing is known. url must
// already be stripped of query values.
func HTTPAttributes(method, route, url string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, status),
	}
}

// PlaybackAttributes labels a bind span with its target.
func PlaybackAttributes(address string, cursor, queueLen int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlaybackAddressKey, address),
		attribute.Int(PlaybackCursorKey, cursor),
		attribute.Int(PlaybackQueueKey, queueLen),
	}
}

// CommandAttributes labels a router dispatch span.
func CommandAttributes(kind string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(CommandKindKey, kind)}
}
