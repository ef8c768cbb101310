// Package discovery scans the broker's symbols for trade candidates. Each
// strategy filters the same per-scan universe; their results are merged in
// priority order under per-strategy quotas.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/logging"
	"github.com/Steinwealth/UltimaBot/internal/metrics"
	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/policy"
	"github.com/Steinwealth/UltimaBot/pkg/utils"
)

// DefaultQuota applies to strategies without a configured quota.
const DefaultQuota = 5

// Config configures an Engine.
type Config struct {
	AssetClass      models.AssetClass
	VolumeFloor     float64
	Strategies      []string
	Quotas          map[string]int
	Blacklist       []string
	MaxSymbols      int
	MarketHoursOnly bool
	Workers         int
}

// Candidate is a symbol selected by a strategy.
type Candidate struct {
	Symbol     string
	StrategyID string
}

// Report is the full result of one scan.
type Report struct {
	Candidates []Candidate
	Failures   []ItemError
	// Skipped is set when a stock scan ran outside market hours.
	Skipped bool
}

// Engine runs the configured strategies over a broker's symbols.
type Engine struct {
	cfg        Config
	strategies []Strategy
	symbols    SymbolLister
	features   FeatureSource
	listings   ListingFeed
	priority   *policy.StrategyPrioritizer
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEngine creates an engine. priority and m may be nil.
func NewEngine(cfg Config, symbols SymbolLister, features FeatureSource, listings ListingFeed, priority *policy.StrategyPrioritizer, m *metrics.Metrics, logger zerolog.Logger) (*Engine, error) {
	if symbols == nil {
		return nil, errors.NewValidationError("symbols", nil, "symbol lister is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}

	builtin := Strategies(cfg.AssetClass)
	strategies := make([]Strategy, 0, len(cfg.Strategies))
	seen := make(map[string]bool, len(cfg.Strategies))
	for _, id := range cfg.Strategies {
		id = strings.ToLower(strings.TrimSpace(id))
		s, ok := builtin[id]
		if !ok {
			return nil, errors.NewValidationError("strategies", id,
				fmt.Sprintf("unknown %s strategy", cfg.AssetClass))
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		strategies = append(strategies, s)
	}

	return &Engine{
		cfg:        cfg,
		strategies: strategies,
		symbols:    symbols,
		features:   features,
		listings:   listings,
		priority:   priority,
		metrics:    m,
		logger:     logging.WithComponent(logger, "discovery"),
		now:        time.Now,
	}, nil
}

// StrategyIDs returns the engine's strategies in configured order.
func (e *Engine) StrategyIDs() []string {
	ids := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		ids[i] = s.ID()
	}
	return ids
}

// Discover returns the candidates of one scan.
func (e *Engine) Discover(ctx context.Context) ([]Candidate, error) {
	report, err := e.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return report.Candidates, nil
}

// Scan runs every strategy over a fresh universe. Only a failure to list the
// broker's symbols is an error; everything per symbol is reported in
// Failures.
func (e *Engine) Scan(ctx context.Context) (Report, error) {
	if e.cfg.AssetClass == models.AssetStock && e.cfg.MarketHoursOnly && !utils.IsMarketOpen(e.now()) {
		e.logger.Debug().Msg("Market closed, skipping stock scan")
		return Report{Skipped: true}, nil
	}

	infos, err := e.symbols.GetSymbols(ctx)
	if err != nil {
		return Report{}, errors.Wrap(err, "failed to list symbols")
	}
	u := NewUniverse(infos, e.cfg.VolumeFloor, e.cfg.MaxSymbols, e.cfg.Blacklist, e.listings, e.features)

	for _, s := range e.strategies {
		if s.NeedsFeatures() {
			u.Prefetch(ctx, e.cfg.Workers)
			break
		}
	}

	type result struct {
		symbols []string
		fails   []ItemError
	}
	var (
		mu      sync.Mutex
		results = make(map[string]result, len(e.strategies))
		g       errgroup.Group
	)
	g.SetLimit(e.cfg.Workers)
	for _, s := range e.strategies {
		s := s
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					results[s.ID()] = result{fails: []ItemError{{
						StrategyID: s.ID(),
						Err:        fmt.Errorf("strategy panic: %v", r),
					}}}
					mu.Unlock()
				}
			}()
			symbols, fails := s.Discover(ctx, u)
			mu.Lock()
			results[s.ID()] = result{symbols: symbols, fails: fails}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	order := e.StrategyIDs()
	if e.priority != nil {
		order = e.priority.Order(order)
	}

	var report Report
	picked := make(map[string]bool)
	for _, id := range order {
		r := results[id]
		report.Failures = append(report.Failures, r.fails...)

		quota := e.quota(id)
		n := 0
		for _, symbol := range r.symbols {
			if n >= quota {
				break
			}
			n++
			symbol = strings.ToUpper(symbol)
			if picked[symbol] || u.Blacklisted(symbol) {
				continue
			}
			picked[symbol] = true
			report.Candidates = append(report.Candidates, Candidate{Symbol: symbol, StrategyID: id})
		}
		e.metrics.Candidates(id, n)
	}

	for _, f := range report.Failures {
		e.logger.Debug().
			Str("strategy", f.StrategyID).
			Str("symbol", f.Symbol).
			Err(f.Err).
			Msg("Discovery item failed")
	}
	e.logger.Info().
		Int("universe", len(u.Symbols())).
		Int("candidates", len(report.Candidates)).
		Int("failures", len(report.Failures)).
		Msg("Discovery scan complete")

	return report, nil
}

func (e *Engine) quota(id string) int {
	if q, ok := e.cfg.Quotas[id]; ok && q >= 0 {
		return q
	}
	return DefaultQuota
}
