package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/logging"
	"github.com/Steinwealth/UltimaBot/internal/metrics"
)

// DefaultPollInterval is the monitor tick period.
const DefaultPollInterval = 5 * time.Second

// MonitorOptions configures the monitor loop.
type MonitorOptions struct {
	Interval time.Duration
	Workers  int
	Clock    Clock
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Monitor re-evaluates every open trade on a fixed interval.
type Monitor struct {
	closer   *AutoCloser
	book     *OpenTrades
	interval time.Duration
	workers  int
	clock    Clock
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewMonitor creates a monitor driving closer.
func NewMonitor(closer *AutoCloser, opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	return &Monitor{
		closer:   closer,
		book:     closer.book,
		interval: opts.Interval,
		workers:  opts.Workers,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		logger:   logging.WithComponent(opts.Logger, "monitor"),
	}
}

// Run ticks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", m.interval).Msg("Trade monitor started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Trade monitor stopped")
			return nil
		case <-ticker.C():
			m.Tick(ctx)
		}
	}
}

// Tick evaluates every open trade once and returns the number of trades
// closed. A failing trade never stops the others.
func (m *Monitor) Tick(ctx context.Context) int {
	ids := m.book.IDs()
	if len(ids) == 0 {
		return 0
	}

	closed := make([]bool, len(ids))
	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			act, err := m.evaluate(ctx, id)
			if err != nil {
				if !errors.Is(err, errors.ErrTradeNotFound) {
					m.metrics.EvaluationError()
					m.logger.Warn().Err(err).Str("trade_id", id).Msg("Trade evaluation failed")
				}
				return nil
			}
			closed[i] = act.Closed
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, c := range closed {
		if c {
			n++
		}
	}
	return n
}

func (m *Monitor) evaluate(ctx context.Context, id string) (act Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluation panicked: %v", r)
		}
	}()
	return m.closer.Evaluate(ctx, id)
}

// RemoveTrade drops a trade from monitoring without closing it.
func (m *Monitor) RemoveTrade(id string) bool {
	ok := m.book.Remove(id)
	m.metrics.SetOpenTrades(m.book.Len())
	return ok
}
