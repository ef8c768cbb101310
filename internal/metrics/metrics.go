// Package metrics exposes engine counters and gauges to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the engine collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	outcomes        *prometheus.CounterVec
	closes          *prometheus.CounterVec
	realizedPnL     *prometheus.CounterVec
	openTrades      prometheus.Gauge
	winStreak       *prometheus.GaugeVec
	evalErrors      prometheus.Counter
	candidates      *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	mode            *prometheus.GaugeVec
	notifyDropped   prometheus.Counter
	stopAdjustments prometheus.Counter
}

// New creates the collectors and registers them, plus the Go runtime
// collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ultimabot_execution_outcomes_total",
				Help: "Executor outcomes by broker and outcome code",
			},
			[]string{"broker", "outcome"},
		),
		closes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ultimabot_trade_closes_total",
				Help: "Closed trades by broker and exit reason",
			},
			[]string{"broker", "reason"},
		),
		realizedPnL: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ultimabot_realized_gain_usd_total",
				Help: "Realized gains and losses in USD, split by sign",
			},
			[]string{"broker", "sign"},
		),
		openTrades: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ultimabot_open_trades",
				Help: "Trades currently open",
			},
		),
		winStreak: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ultimabot_win_streak",
				Help: "Consecutive winning closes per broker",
			},
			[]string{"broker"},
		),
		evalErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ultimabot_evaluation_errors_total",
				Help: "Per-trade evaluation faults recovered by the monitor",
			},
		),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ultimabot_discovery_candidates_total",
				Help: "Candidates produced by each discovery strategy",
			},
			[]string{"strategy"},
		),
		// 0 closed, 1 half-open, 2 open
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ultimabot_broker_circuit_state",
				Help: "Broker circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"broker"},
		),
		mode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ultimabot_mode",
				Help: "Active trading mode (1 for the active mode)",
			},
			[]string{"mode"},
		),
		notifyDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ultimabot_notify_subscribers_dropped_total",
				Help: "Notification subscribers dropped after a failed send",
			},
		),
		stopAdjustments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ultimabot_trailing_stop_adjustments_total",
				Help: "Trailing stop moves applied to open trades",
			},
		),
	}

	m.registry.MustRegister(
		m.outcomes, m.closes, m.realizedPnL, m.openTrades, m.winStreak,
		m.evalErrors, m.candidates, m.breakerState, m.mode, m.notifyDropped,
		m.stopAdjustments,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ExecutionOutcome counts one executor outcome.
func (m *Metrics) ExecutionOutcome(broker, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(broker, outcome).Inc()
}

// TradeClosed counts a close and its realized gain.
func (m *Metrics) TradeClosed(broker, reason string, gainUSD float64) {
	if m == nil {
		return
	}
	m.closes.WithLabelValues(broker, reason).Inc()
	if gainUSD >= 0 {
		m.realizedPnL.WithLabelValues(broker, "gain").Add(gainUSD)
	} else {
		m.realizedPnL.WithLabelValues(broker, "loss").Add(-gainUSD)
	}
}

// SetOpenTrades sets the open trade gauge.
func (m *Metrics) SetOpenTrades(n int) {
	if m == nil {
		return
	}
	m.openTrades.Set(float64(n))
}

// SetWinStreak sets the streak gauge of a broker.
func (m *Metrics) SetWinStreak(broker string, streak int) {
	if m == nil {
		return
	}
	m.winStreak.WithLabelValues(broker).Set(float64(streak))
}

// EvaluationError counts a recovered evaluation fault.
func (m *Metrics) EvaluationError() {
	if m == nil {
		return
	}
	m.evalErrors.Inc()
}

// Candidates counts candidates produced by a strategy.
func (m *Metrics) Candidates(strategy string, n int) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(strategy).Add(float64(n))
}

// BreakerState records a breaker transition.
func (m *Metrics) BreakerState(broker, state string) {
	if m == nil {
		return
	}
	v := 0.0
	switch state {
	case "HALF_OPEN":
		v = 1
	case "OPEN":
		v = 2
	}
	m.breakerState.WithLabelValues(broker).Set(v)
}

// SetMode marks active as the current mode among all.
func (m *Metrics) SetMode(active string, all []string) {
	if m == nil {
		return
	}
	for _, name := range all {
		v := 0.0
		if name == active {
			v = 1
		}
		m.mode.WithLabelValues(name).Set(v)
	}
}

// SubscriberDropped counts a dropped notification subscriber.
func (m *Metrics) SubscriberDropped() {
	if m == nil {
		return
	}
	m.notifyDropped.Inc()
}

// StopAdjusted counts a trailing stop move.
func (m *Metrics) StopAdjusted() {
	if m == nil {
		return
	}
	m.stopAdjustments.Inc()
}
