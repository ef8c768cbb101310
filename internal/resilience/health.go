package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name    string        `json:"name"`
	Status  HealthStatus  `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
}

// HealthCheck represents a health check function.
type HealthCheck func(ctx context.Context) ComponentHealth

// SystemHealth represents overall system health.
type SystemHealth struct {
	Status     HealthStatus      `json:"status"`
	Uptime     string            `json:"uptime"`
	Goroutines int               `json:"goroutines"`
	Components []ComponentHealth `json:"components"`
}

// HealthMonitor runs registered checks on demand.
type HealthMonitor struct {
	mu         sync.RWMutex
	startTime  time.Time
	components map[string]HealthCheck
	timeout    time.Duration
}

// NewHealthMonitor creates a new health monitor.
func NewHealthMonitor(timeout time.Duration) *HealthMonitor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthMonitor{
		startTime:  time.Now(),
		components: make(map[string]HealthCheck),
		timeout:    timeout,
	}
}

// RegisterComponent registers a health check for a component.
func (m *HealthMonitor) RegisterComponent(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = check
}

// Check runs every registered check concurrently.
func (m *HealthMonitor) Check(ctx context.Context) SystemHealth {
	m.mu.RLock()
	components := make(map[string]HealthCheck, len(m.components))
	for k, v := range m.components {
		components[k] = v
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]ComponentHealth, 0, len(components))
	)
	for name, check := range components {
		wg.Add(1)
		go func(n string, c HealthCheck) {
			defer wg.Done()
			start := time.Now()
			h := runCheck(ctx, n, c)
			h.Name = n
			h.Latency = time.Since(start)
			mu.Lock()
			results = append(results, h)
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	overall := HealthStatusHealthy
	for _, h := range results {
		switch h.Status {
		case HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if overall == HealthStatusHealthy {
				overall = HealthStatusDegraded
			}
		}
	}

	return SystemHealth{
		Status:     overall,
		Uptime:     time.Since(m.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Components: results,
	}
}

func runCheck(ctx context.Context, name string, c HealthCheck) (h ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			h = ComponentHealth{
				Status:  HealthStatusUnhealthy,
				Message: fmt.Sprintf("check %s panicked: %v", name, r),
			}
		}
	}()
	return c(ctx)
}

// HealthHTTPHandler returns an HTTP handler for health checks.
func (m *HealthMonitor) HealthHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := m.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(health)
	}
}

// DatabaseHealthCheck creates a health check for database connections.
func DatabaseHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{
				Status:  HealthStatusUnhealthy,
				Message: fmt.Sprintf("database ping failed: %v", err),
			}
		}
		return ComponentHealth{Status: HealthStatusHealthy}
	}
}

// BreakerHealthCheck reports an open breaker as unhealthy and a probing
// breaker as degraded.
func BreakerHealthCheck(cb *CircuitBreaker) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		stats := cb.Stats()
		rate := fmt.Sprintf("%.1f%% of calls failed", stats.FailureRate())
		switch stats.State {
		case CircuitOpen:
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: "broker circuit open, " + rate}
		case CircuitHalfOpen:
			return ComponentHealth{Status: HealthStatusDegraded, Message: "broker circuit half-open, " + rate}
		}
		return ComponentHealth{Status: HealthStatusHealthy, Message: rate}
	}
}
