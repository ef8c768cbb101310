// Package notify fans trade events out to subscribers.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Steinwealth/UltimaBot/internal/models"
)

// Notifier broadcasts engine events.
type Notifier interface {
	Broadcast(ctx context.Context, ev models.Event)
}

// Subscriber receives broadcast events. A subscriber whose Send fails is
// dropped from the broadcaster.
type Subscriber interface {
	Name() string
	Send(ctx context.Context, ev models.Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc struct {
	name string
	fn   func(ctx context.Context, ev models.Event) error
}

// NewSubscriberFunc creates a named function subscriber.
func NewSubscriberFunc(name string, fn func(ctx context.Context, ev models.Event) error) *SubscriberFunc {
	return &SubscriberFunc{name: name, fn: fn}
}

// Name returns the subscriber name.
func (s *SubscriberFunc) Name() string { return s.name }

// Send calls the wrapped function.
func (s *SubscriberFunc) Send(ctx context.Context, ev models.Event) error { return s.fn(ctx, ev) }

// Broadcaster delivers each event to every subscriber, best effort.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	logger      zerolog.Logger
	now         func() time.Time

	sent    uint64
	dropped uint64
	onDrop  func(name string)
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger.With().Str("component", "notify").Logger(),
		now:    time.Now,
	}
}

// Subscribe adds a subscriber.
func (b *Broadcaster) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Unsubscribe removes every subscriber registered under name.
func (b *Broadcaster) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(map[string]bool{name: true})
}

// OnDrop registers a callback invoked when a failing subscriber is removed.
func (b *Broadcaster) OnDrop(fn func(name string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDrop = fn
}

// Subscribers returns the names of the current subscribers.
func (b *Broadcaster) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, len(b.subscribers))
	for i, s := range b.subscribers {
		names[i] = s.Name()
	}
	return names
}

// Broadcast sends ev to every subscriber. Subscribers that fail are logged
// and dropped; the rest still receive the event.
func (b *Broadcaster) Broadcast(ctx context.Context, ev models.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}

	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers...)
	b.mu.RUnlock()

	failed := make(map[string]bool)
	for _, s := range subs {
		if err := send(ctx, s, ev); err != nil {
			b.logger.Warn().
				Err(err).
				Str("subscriber", s.Name()).
				Str("event", string(ev.Event)).
				Msg("Dropping failing subscriber")
			failed[s.Name()] = true
		}
	}

	b.mu.Lock()
	b.sent++
	var onDrop func(string)
	if len(failed) > 0 {
		b.removeLocked(failed)
		onDrop = b.onDrop
	}
	b.mu.Unlock()

	if onDrop != nil {
		for name := range failed {
			onDrop(name)
		}
	}
}

func send(ctx context.Context, s Subscriber, ev models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	return s.Send(ctx, ev)
}

// removeLocked must be called with b.mu held.
func (b *Broadcaster) removeLocked(names map[string]bool) {
	kept := b.subscribers[:0]
	for _, s := range b.subscribers {
		if names[s.Name()] {
			b.dropped++
			continue
		}
		kept = append(kept, s)
	}
	b.subscribers = kept
}

// Stats returns the number of events broadcast and subscribers dropped.
func (b *Broadcaster) Stats() (sent, dropped uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sent, b.dropped
}
