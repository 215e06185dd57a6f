package events

import (
	"log/slog"
	"sync"
	"time"
)

// defaultBuffer is the per-subscriber channel depth. A subscriber that falls
// this far behind the producer is dropped rather than back-pressuring it.
const defaultBuffer = 256

// Subscription is one subscriber's ordered view of the bus. Events arrive on
// C in publication order. Closed when the subscriber is dropped or the bus
// shuts down.
type Subscription struct {
	C    <-chan Event
	name string
	ch   chan Event
}

// Name returns the subscriber name given at registration.
func (s *Subscription) Name() string { return s.name }

// Bus fans events out to all registered subscribers. Publication never
// blocks: a subscriber whose buffer is full is dropped and its channel
// closed, and delivery to the remaining subscribers continues.
type Bus struct {
	mu          sync.Mutex
	subscribers map[*Subscription]bool
	closed      bool
	log         *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{subscribers: make(map[*Subscription]bool), log: log}
}

// Subscribe registers a named subscriber and returns its subscription.
func (b *Bus) Subscribe(name string) *Subscription {
	sub := &Subscription{name: name, ch: make(chan Event, defaultBuffer)}
	sub.C = sub.ch

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subscribers[sub] = true
	return sub
}

// SubscribeFunc registers a callback subscriber. The callback is invoked
// sequentially, in publication order, from a dedicated goroutine. A callback
// error unsubscribes the subscriber.
func (b *Bus) SubscribeFunc(name string, fn func(Event) error) {
	sub := b.Subscribe(name)
	go func() {
		for event := range sub.C {
			if err := fn(event); err != nil {
				b.log.Warn("Dropping progress subscriber after callback error",
					"subscriber", name, "event", event.Kind, "error", err)
				b.Unsubscribe(sub)
				// Drain so the publisher-side close doesn't strand events.
				for range sub.C {
				}
				return
			}
		}
	}()
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		close(sub.ch)
	}
}

// Publish delivers an event to every subscriber in registration-independent
// order. Each subscriber observes events in publication order. Slow
// subscribers are dropped, never waited on.
func (b *Bus) Publish(kind Kind, data map[string]any) {
	event := Event{Kind: kind, Timestamp: time.Now().UTC(), Data: data}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			b.log.Warn("Dropping slow progress subscriber",
				"subscriber", sub.name, "event", kind)
			delete(b.subscribers, sub)
			close(sub.ch)
		}
	}
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close shuts the bus down, closing every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		delete(b.subscribers, sub)
		close(sub.ch)
	}
}
