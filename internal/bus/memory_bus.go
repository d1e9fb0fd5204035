// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"sync"

	"github.com/ManuGH/chatdj/internal/metrics"
)

const subscriberBuffer = 16

// MemoryBus delivers best effort: a full subscriber buffer drops the message
// for that subscriber only.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]*memorySub
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*memorySub)}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := b.subs[topic]
	if len(subs) == 0 {
		return ErrNoSubscribers
	}
	for _, s := range subs {
		select {
		case s.ch <- msg:
		default:
			metrics.IncBusDropReason(topic, "full")
		}
	}
	return nil
}

// Subscribe registers on topic. The subscription ends on Close or when ctx
// is done.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	s := &memorySub{bus: b, topic: topic, ch: make(chan Message, subscriberBuffer), done: make(chan struct{})}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-s.done:
			}
		}()
	}
	return s, nil
}

// Subscribers returns the number of registrations on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *MemoryBus) remove(s *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lst := b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(b.subs, s.topic)
	} else {
		b.subs[s.topic] = out
	}
}

type memorySub struct {
	bus   *MemoryBus
	topic string
	ch    chan Message
	done  chan struct{}
	once  sync.Once
}

func (s *memorySub) C() <-chan Message { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		// Unregister before closing so Publish never sends on a closed channel.
		s.bus.remove(s)
		close(s.done)
		close(s.ch)
	})
	return nil
}
