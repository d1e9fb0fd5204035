// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus is the in-process pub/sub used to fan playlist views out to
// display surfaces.
package bus

import (
	"context"
	"errors"
)

// TopicPlaylist carries model.PlaylistView values.
const TopicPlaylist = "playlist"

// ErrNoSubscribers is returned by Publish when nobody listens on the topic.
var ErrNoSubscribers = errors.New("bus: no subscribers")

// Message is an opaque event payload.
type Message interface{}

// Subscriber is one registration on a topic.
type Subscriber interface {
	// C returns the message channel. It is closed by Close.
	C() <-chan Message
	Close() error
}

// Bus is the event transport abstraction.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
