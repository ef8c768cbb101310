package broker

import (
	"context"
	"sync"
	"time"
)

// Throttle is a token bucket limiting outbound request rate per broker.
type Throttle struct {
	rate       float64 // tokens per second
	burst      int     // max tokens
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewThrottle creates a throttle refilling rate tokens per second. A
// non-positive rate disables throttling.
func NewThrottle(rate float64, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
		now:        time.Now,
	}
}

// Allow takes a token if one is available.
func (t *Throttle) Allow() bool {
	if t == nil || t.rate <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	elapsed := now.Sub(t.lastUpdate).Seconds()
	t.lastUpdate = now

	t.tokens += elapsed * t.rate
	if t.tokens > float64(t.burst) {
		t.tokens = float64(t.burst)
	}

	if t.tokens >= 1 {
		t.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	for {
		if t.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
