package policy

import (
	"sort"
	"sync"
)

// StrategyPrioritizer reorders discovery strategies using the symbols that
// have performed best and the strategies that found them.
type StrategyPrioritizer struct {
	tracker    *SymbolPriorityTracker
	minTrades  int
	topSymbols int
	moonshots  map[string]bool

	mu      sync.RWMutex
	sources map[string]map[string]bool // symbol -> strategies
}

// NewStrategyPrioritizer creates a prioritizer. moonshots lists strategies
// that always get the extra boost.
func NewStrategyPrioritizer(tracker *SymbolPriorityTracker, minTrades, topSymbols int, moonshots []string) *StrategyPrioritizer {
	ms := make(map[string]bool, len(moonshots))
	for _, s := range moonshots {
		ms[s] = true
	}
	return &StrategyPrioritizer{
		tracker:    tracker,
		minTrades:  minTrades,
		topSymbols: topSymbols,
		moonshots:  ms,
		sources:    make(map[string]map[string]bool),
	}
}

// RecordSource notes that strategy produced symbol.
func (s *StrategyPrioritizer) RecordSource(symbol, strategy string) {
	if strategy == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sources[symbol]
	if !ok {
		m = make(map[string]bool)
		s.sources[symbol] = m
	}
	m[strategy] = true
}

// Order returns strategies sorted by boost, highest first. Every strategy
// that produced one of the top ranked symbols gains 1 per symbol and
// moonshot strategies gain 2. Ties keep their input order.
func (s *StrategyPrioritizer) Order(strategies []string) []string {
	boost := make(map[string]int, len(strategies))

	ranked := s.tracker.Ranked(s.minTrades)
	if len(ranked) > s.topSymbols {
		ranked = ranked[:s.topSymbols]
	}

	s.mu.RLock()
	for _, r := range ranked {
		for strategy := range s.sources[r.Symbol] {
			boost[strategy]++
		}
	}
	s.mu.RUnlock()

	for _, strategy := range strategies {
		if s.moonshots[strategy] {
			boost[strategy] += 2
		}
	}

	out := append([]string(nil), strategies...)
	sort.SliceStable(out, func(i, j int) bool {
		return boost[out[i]] > boost[out[j]]
	})
	return out
}
