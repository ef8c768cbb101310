package resilience

import (
	"sort"
	"sync"
)

// CircuitBreakerRegistry holds one circuit breaker per broker.
type CircuitBreakerRegistry struct {
	mu            sync.RWMutex
	breakers      map[string]*CircuitBreaker
	config        CircuitBreakerConfig
	onStateChange func(name string, from, to CircuitState)
}

// NewCircuitBreakerRegistry creates a new registry with default config.
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
	}
}

// OnStateChange sets the callback attached to every breaker created afterwards.
func (r *CircuitBreakerRegistry) OnStateChange(fn func(name string, from, to CircuitState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStateChange = fn
}

// Get returns or creates a circuit breaker for the given name.
func (r *CircuitBreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	if cb, ok := r.breakers[name]; ok {
		r.mu.RUnlock()
		return cb
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cb := NewCircuitBreaker(name, r.config)
	if r.onStateChange != nil {
		cb.OnStateChange(r.onStateChange)
	}
	r.breakers[name] = cb
	return cb
}

// AllStats returns statistics for all circuit breakers, sorted by name.
func (r *CircuitBreakerRegistry) AllStats() []CircuitBreakerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]CircuitBreakerStats, 0, len(r.breakers))
	for _, cb := range r.breakers {
		stats = append(stats, cb.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}
