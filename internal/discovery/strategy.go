package discovery

import (
	"context"
	"sort"

	"github.com/Steinwealth/UltimaBot/internal/models"
)

// ItemError is a per-symbol (or per-feed, when Symbol is empty) failure of
// one strategy. The symbol is skipped; the scan goes on.
type ItemError struct {
	Symbol     string
	StrategyID string
	Err        error
}

// Strategy selects symbols from a universe. The returned order is the
// strategy's preference order.
type Strategy interface {
	ID() string
	Name() string
	NeedsFeatures() bool
	Discover(ctx context.Context, u *Universe) ([]string, []ItemError)
}

// predicate decides on one decoded snapshot. floor is the universe
// liquidity floor.
type predicate func(d *decoder, floor float64) bool

// predicateStrategy evaluates a predicate over every universe symbol's
// feature snapshot.
type predicateStrategy struct {
	id   string
	name string
	pred predicate
}

func (s *predicateStrategy) ID() string          { return s.id }
func (s *predicateStrategy) Name() string        { return s.name }
func (s *predicateStrategy) NeedsFeatures() bool { return true }

func (s *predicateStrategy) Discover(ctx context.Context, u *Universe) ([]string, []ItemError) {
	var (
		out   []string
		fails []ItemError
	)
	for _, symbol := range u.Symbols() {
		if ctx.Err() != nil {
			break
		}
		if u.Blacklisted(symbol) {
			continue
		}

		raw, err := u.Features(ctx, symbol)
		if err != nil {
			fails = append(fails, ItemError{Symbol: symbol, StrategyID: s.id, Err: err})
			continue
		}

		d := newDecoder(raw)
		ok := s.pred(d, u.Floor)
		if d.err != nil {
			fails = append(fails, ItemError{Symbol: symbol, StrategyID: s.id, Err: d.err})
			continue
		}
		if ok {
			out = append(out, symbol)
		}
	}
	return out, fails
}

// Strategies returns the built-in strategies of an asset class keyed by id.
func Strategies(asset models.AssetClass) map[string]Strategy {
	var list []Strategy
	if asset == models.AssetStock {
		list = stockStrategies()
	} else {
		list = cryptoStrategies()
	}
	out := make(map[string]Strategy, len(list))
	for _, s := range list {
		out[s.ID()] = s
	}
	return out
}

// StrategyIDs returns the built-in strategy ids of an asset class, sorted.
func StrategyIDs(asset models.AssetClass) []string {
	ids := make([]string, 0)
	for id := range Strategies(asset) {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
