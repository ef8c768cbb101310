package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

// Universe is the per-scan view shared by every strategy: the liquid
// tradable symbols, the listing feed and memoised feature snapshots.
type Universe struct {
	Floor    float64
	Listings ListingFeed

	symbols   []string
	tradable  map[string]bool
	blacklist map[string]bool
	source    FeatureSource

	mu    sync.Mutex
	cells map[string]*featureCell
}

type featureCell struct {
	once sync.Once
	raw  map[string]any
	err  error
}

// NewUniverse builds a universe from the broker's symbols. Symbols below
// floor are dropped; the rest are ordered by 24h volume, highest first, and
// capped at maxSymbols when it is positive.
func NewUniverse(infos []models.SymbolInfo, floor float64, maxSymbols int, blacklist []string, listings ListingFeed, source FeatureSource) *Universe {
	liquid := make([]models.SymbolInfo, 0, len(infos))
	for _, info := range infos {
		if info.Volume24h >= floor {
			info.Symbol = strings.ToUpper(info.Symbol)
			liquid = append(liquid, info)
		}
	}
	sort.SliceStable(liquid, func(i, j int) bool {
		if liquid[i].Volume24h == liquid[j].Volume24h {
			return liquid[i].Symbol < liquid[j].Symbol
		}
		return liquid[i].Volume24h > liquid[j].Volume24h
	})
	if maxSymbols > 0 && len(liquid) > maxSymbols {
		liquid = liquid[:maxSymbols]
	}

	u := &Universe{
		Floor:     floor,
		Listings:  listings,
		tradable:  make(map[string]bool, len(liquid)),
		blacklist: make(map[string]bool, len(blacklist)),
		source:    source,
		cells:     make(map[string]*featureCell),
	}
	for _, info := range liquid {
		u.symbols = append(u.symbols, info.Symbol)
		u.tradable[info.Symbol] = true
	}
	for _, s := range blacklist {
		u.blacklist[strings.ToUpper(s)] = true
	}
	return u
}

// Symbols returns the liquid tradable symbols in scan order.
func (u *Universe) Symbols() []string {
	return u.symbols
}

// Tradable reports whether symbol is a liquid broker symbol.
func (u *Universe) Tradable(symbol string) bool {
	return u.tradable[strings.ToUpper(symbol)]
}

// Blacklisted reports whether symbol must never be traded.
func (u *Universe) Blacklisted(symbol string) bool {
	return u.blacklist[strings.ToUpper(symbol)]
}

// Features returns the symbol's snapshot, fetching it at most once per scan.
func (u *Universe) Features(ctx context.Context, symbol string) (map[string]any, error) {
	if u.source == nil {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "no feature source for %s", symbol)
	}

	u.mu.Lock()
	c, ok := u.cells[symbol]
	if !ok {
		c = &featureCell{}
		u.cells[symbol] = c
	}
	u.mu.Unlock()

	c.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				c.raw, c.err = nil, fmt.Errorf("feature source panic for %s: %v", symbol, r)
			}
		}()
		c.raw, c.err = u.source.Features(ctx, symbol)
	})
	return c.raw, c.err
}

// Prefetch loads the snapshots of every non-blacklisted symbol with at most
// workers fetches in flight. Failures stay memoised for the strategies to
// report.
func (u *Universe) Prefetch(ctx context.Context, workers int) {
	if u.source == nil {
		return
	}
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, s := range u.symbols {
		if u.Blacklisted(s) {
			continue
		}
		s := s
		g.Go(func() error {
			_, _ = u.Features(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
}
