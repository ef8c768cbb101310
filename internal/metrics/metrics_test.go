package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.ExecutionOutcome("paper", "trade_opened")
	m.ExecutionOutcome("paper", "trade_opened")
	m.ExecutionOutcome("paper", "confidence_too_low")
	m.TradeClosed("paper", "take_profit", 25)
	m.TradeClosed("paper", "stop_loss", -10)
	m.SetOpenTrades(3)
	m.SetWinStreak("paper", 4)
	m.BreakerState("paper", "OPEN")
	m.SetMode("Hard", []string{"Easy", "Hard", "Hero"})

	if got := testutil.ToFloat64(m.outcomes.WithLabelValues("paper", "trade_opened")); got != 2 {
		t.Errorf("trade_opened = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.realizedPnL.WithLabelValues("paper", "loss")); got != 10 {
		t.Errorf("loss = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.openTrades); got != 3 {
		t.Errorf("open trades = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("paper")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.mode.WithLabelValues("Easy")); got != 0 {
		t.Errorf("Easy mode gauge = %v, want 0", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ExecutionOutcome("paper", "trade_opened")
	m.TradeClosed("paper", "take_profit", 1)
	m.SetOpenTrades(1)
	m.EvaluationError()
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ExecutionOutcome("paper", "trade_opened")

	srv := httptest.NewServer(m.Handler(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "ultimabot_execution_outcomes_total") {
		t.Error("/metrics should expose execution outcomes")
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", resp.StatusCode)
	}
}
