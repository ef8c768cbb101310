package trading

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Steinwealth/UltimaBot/internal/analysis/indicators"
	"github.com/Steinwealth/UltimaBot/internal/broker"
	"github.com/Steinwealth/UltimaBot/internal/discovery"
	"github.com/Steinwealth/UltimaBot/internal/logging"
	"github.com/Steinwealth/UltimaBot/internal/metrics"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

// Scan cycle defaults.
const (
	DefaultScanSchedule   = "@every 1m"
	DefaultCandleInterval = "5m"
	DefaultCandleLimit    = 100
	breakoutLookback      = 3
)

// Discoverer yields the candidates of one scan.
type Discoverer interface {
	Discover(ctx context.Context) ([]discovery.Candidate, error)
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Schedule  string // cron spec
	Discovery Discoverer
	Executor  *Executor
	Broker    broker.Client
	Candles   broker.MarketData
	ModelID   string // used when the account reports none
	Interval  string
	Limit     int
	Workers   int
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// CycleResult summarises one scan and execution cycle.
type CycleResult struct {
	Candidates int
	Skipped    int // candidates without usable candles
	Outcomes   []Outcome
}

// Opened returns the number of trades opened in the cycle.
func (r CycleResult) Opened() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Opened() {
			n++
		}
	}
	return n
}

// Scheduler runs discovery and execution on a cron schedule. Overlapping
// cycles are skipped.
type Scheduler struct {
	schedule  string
	discovery Discoverer
	executor  *Executor
	broker    broker.Client
	candles   broker.MarketData
	modelID   string
	interval  string
	limit     int
	workers   int
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	running atomic.Bool

	mu   sync.Mutex
	cron *cron.Cron
}

// NewScheduler creates a scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	if opts.Schedule == "" {
		opts.Schedule = DefaultScanSchedule
	}
	if opts.Interval == "" {
		opts.Interval = DefaultCandleInterval
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultCandleLimit
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Scheduler{
		schedule:  opts.Schedule,
		discovery: opts.Discovery,
		executor:  opts.Executor,
		broker:    opts.Broker,
		candles:   opts.Candles,
		modelID:   opts.ModelID,
		interval:  opts.Interval,
		limit:     opts.Limit,
		workers:   opts.Workers,
		metrics:   opts.Metrics,
		logger:    logging.WithComponent(opts.Logger, "scheduler"),
	}
}

// Run starts the schedule, runs one cycle immediately and blocks until ctx
// is cancelled. Running cycles finish before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid scan schedule %q: %w", s.schedule, err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("Scan scheduler started")
	go s.tick(ctx)

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop halts the schedule and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		s.logger.Info().Msg("Scan scheduler stopped")
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug().Msg("Previous cycle still running, skipping")
		return
	}
	defer s.running.Store(false)

	res, err := s.RunCycle(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scan cycle failed")
		return
	}
	s.logger.Info().
		Int("candidates", res.Candidates).
		Int("skipped", res.Skipped).
		Int("opened", res.Opened()).
		Msg("Scan cycle complete")
}

// RunCycle discovers candidates, loads their candles and hands them to the
// executor. Candidates whose candles cannot be loaded are skipped.
func (s *Scheduler) RunCycle(ctx context.Context) (res CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.EvaluationError()
			err = fmt.Errorf("scan cycle panicked: %v", r)
		}
	}()

	cands, err := s.discovery.Discover(ctx)
	if err != nil {
		return res, err
	}
	res.Candidates = len(cands)
	if len(cands) == 0 {
		return res, nil
	}

	account, err := s.broker.GetAccountInfo(ctx)
	if err != nil {
		return res, err
	}
	if account.ModelID == "" {
		account.ModelID = s.modelID
	}

	reqs := make([]*ExecuteRequest, len(cands))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, c := range cands {
		i, c := i, c
		g.Go(func() error {
			candles, err := s.candles.GetCandles(ctx, c.Symbol, s.interval, s.limit)
			if err != nil || len(candles) == 0 {
				s.logger.Debug().Err(err).Str("symbol", c.Symbol).Msg("No candles for candidate")
				return nil
			}
			closes := make([]float64, len(candles))
			for j, cd := range candles {
				closes[j] = cd.Close
			}
			reqs[i] = &ExecuteRequest{
				Symbol:     c.Symbol,
				Market:     models.MarketDataFromCandles(candles, indicators.Velocity(closes, breakoutLookback)),
				Account:    account,
				StrategyID: c.StrategyID,
			}
			return nil
		})
	}
	_ = g.Wait()

	batch := make([]ExecuteRequest, 0, len(reqs))
	for _, r := range reqs {
		if r == nil {
			res.Skipped++
			continue
		}
		batch = append(batch, *r)
	}
	res.Outcomes = s.executor.ExecuteBatch(ctx, batch)
	return res, nil
}
