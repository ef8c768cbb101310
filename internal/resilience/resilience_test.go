package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var errBroker = errors.New("broker down")

func failing(context.Context) error { return errBroker }
func passing(context.Context) error { return nil }

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("paper", CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	})
	cb.now = func() time.Time { return now }

	var transitions []CircuitState
	cb.OnStateChange(func(_ string, _, to CircuitState) {
		transitions = append(transitions, to)
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, failing); !errors.Is(err, errBroker) {
			t.Fatalf("attempt %d: error = %v", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}

	if err := cb.Execute(ctx, passing); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker error = %v, want ErrCircuitOpen", err)
	}

	now = now.Add(2 * time.Minute)
	if err := cb.Execute(ctx, passing); err != nil {
		t.Fatalf("half-open probe error = %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %s, want CLOSED", cb.State())
	}

	want := []CircuitState{CircuitOpen, CircuitHalfOpen, CircuitClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}

	stats := cb.Stats()
	if stats.TotalRejected != 1 {
		t.Errorf("TotalRejected = %d, want 1", stats.TotalRejected)
	}
}

func TestCircuitBreakerIgnoresNonFailures(t *testing.T) {
	permanent := errors.New("invalid symbol")
	cb := NewCircuitBreaker("paper", CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		IsFailure:        func(err error) bool { return errors.Is(err, errBroker) },
	})

	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return permanent })
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want CLOSED", cb.State())
	}
}

func TestRegistryReusesBreakers(t *testing.T) {
	r := NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig())
	if r.Get("binance") != r.Get("binance") {
		t.Fatal("expected the same breaker for the same name")
	}
	r.Get("paper")
	stats := r.AllStats()
	if len(stats) != 2 || stats[0].Name != "binance" {
		t.Errorf("AllStats() = %+v", stats)
	}
}

func TestHealthHandler(t *testing.T) {
	cb := NewCircuitBreaker("paper", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Hour})
	m := NewHealthMonitor(time.Second)
	m.RegisterComponent("broker", BreakerHealthCheck(cb))
	m.RegisterComponent("database", DatabaseHealthCheck(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	m.HealthHTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	_ = cb.Execute(context.Background(), failing)

	rec = httptest.NewRecorder()
	m.HealthHTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	h := BreakerHealthCheck(cb)(context.Background())
	if h.Message != "broker circuit open, 100.0% of calls failed" {
		t.Errorf("Message = %q", h.Message)
	}
}
