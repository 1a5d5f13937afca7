// pkg/bus/ps/ps.go

// Package ps is the in-process bus.Dispatcher used by default, built on
// cskr/pubsub.
package ps

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/cskr/pubsub"

	"github.com/envis10n/go-grapevine/pkg/bus"
)

// DefaultCapacity is the per-subscriber buffer when none is given.
const DefaultCapacity = 32

// Bus implements bus.Dispatcher over a cskr/pubsub fanout.
//
// Note order is preserved per subscriber. The cost is backpressure: a
// subscriber that stops draining its feed without cancelling it will
// eventually stall Publish, exactly as a stuck handler would stall a
// synchronous event emitter.
type Bus struct {
	bus      *pubsub.PubSub
	logger   *slog.Logger
	capacity int

	// mu is held for reading across every pubsub operation so Close cannot
	// shut the fanout down underneath an in-flight Pub.
	mu     sync.RWMutex
	closed bool
}

// New creates a Bus. capacity <= 0 selects DefaultCapacity.
func New(logger *slog.Logger, capacity int) *Bus {
	if logger == nil {
		panic("logger must not be nil")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		bus:      pubsub.New(capacity),
		logger:   logger,
		capacity: capacity,
	}
}

// Publish delivers n to subscribers of each topic, defaulting to n.Topic.
func (b *Bus) Publish(n bus.Note, topics ...string) {
	if len(topics) == 0 {
		topics = []string{n.Topic}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.logger.Debug("bus: publish after close dropped", "topic", n.Topic)
		return
	}
	b.bus.Pub(n, topics...)
}

// Subscribe opens a feed for the given topics.
func (b *Bus) Subscribe(topics ...string) (*bus.Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, errors.New("bus is closed")
	}
	raw := b.bus.Sub(topics...)
	b.mu.RUnlock()

	out := make(chan bus.Note, b.capacity)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.RLock()
			if !b.closed {
				b.bus.Unsub(raw, topics...)
			}
			b.mu.RUnlock()
		})
	}

	go func() {
		defer close(out)
		for v := range raw {
			n, ok := v.(bus.Note)
			if !ok {
				continue
			}
			select {
			case out <- n:
			case <-done:
				// Cancelled mid-send; keep draining raw so Unsub can
				// close it underneath us.
			}
		}
	}()

	return bus.NewSubscription(out, cancel), nil
}

// Close shuts the fanout down. Every subscription channel closes once its
// buffered notes are drained.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.bus.Shutdown()
	b.logger.Debug("bus: closed")
	return nil
}
