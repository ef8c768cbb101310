package policy

import (
	"sort"
	"sync"

	"github.com/Steinwealth/UltimaBot/internal/analysis/indicators"
)

// SymbolMemory is the rolling performance of one symbol.
type SymbolMemory struct {
	Gains       []float64
	Confidences []float64
	Streak      int
}

// RankedSymbol is a symbol with its priority score.
type RankedSymbol struct {
	Symbol string
	Score  float64
	Trades int
}

// SymbolPriorityTracker ranks symbols by their realized performance.
type SymbolPriorityTracker struct {
	historyCap int

	mu     sync.RWMutex
	memory map[string]*SymbolMemory
}

// NewSymbolPriorityTracker creates a tracker keeping at most historyCap
// samples per symbol. A non-positive cap defaults to 100.
func NewSymbolPriorityTracker(historyCap int) *SymbolPriorityTracker {
	if historyCap <= 0 {
		historyCap = 100
	}
	return &SymbolPriorityTracker{
		historyCap: historyCap,
		memory:     make(map[string]*SymbolMemory),
	}
}

// Update appends a closed trade's result for symbol.
func (p *SymbolPriorityTracker) Update(symbol string, gainPct, confidence float64, streak int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.memory[symbol]
	if !ok {
		m = &SymbolMemory{}
		p.memory[symbol] = m
	}
	m.Gains = capped(append(m.Gains, gainPct), p.historyCap)
	m.Confidences = capped(append(m.Confidences, confidence), p.historyCap)
	m.Streak = streak
}

func capped(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return append([]float64(nil), values[len(values)-n:]...)
}

// Ranked returns symbols with at least minTrades samples, best first.
// score = avg_gain*avg_confidence - 0.5*stdev(gains) + 0.1*streak.
func (p *SymbolPriorityTracker) Ranked(minTrades int) []RankedSymbol {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ranked := make([]RankedSymbol, 0, len(p.memory))
	for sym, m := range p.memory {
		if len(m.Gains) < minTrades || len(m.Gains) == 0 {
			continue
		}
		score := indicators.Mean(m.Gains)*indicators.Mean(m.Confidences) -
			0.5*indicators.SampleStdDev(m.Gains) +
			0.1*float64(m.Streak)
		ranked = append(ranked, RankedSymbol{Symbol: sym, Score: score, Trades: len(m.Gains)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	return ranked
}

// Memory returns a copy of symbol's memory.
func (p *SymbolPriorityTracker) Memory(symbol string) (SymbolMemory, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.memory[symbol]
	if !ok {
		return SymbolMemory{}, false
	}
	return SymbolMemory{
		Gains:       append([]float64(nil), m.Gains...),
		Confidences: append([]float64(nil), m.Confidences...),
		Streak:      m.Streak,
	}, true
}
