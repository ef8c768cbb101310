package policy

import (
	"sync"

	"github.com/Steinwealth/UltimaBot/internal/models"
)

// ExitMemory is the context recorded when a symbol's trade closed.
type ExitMemory struct {
	Reason     models.ExitReason
	Confidence float64
	GainPct    float64
}

// ReentryManager decides whether a previously exited symbol may be
// reopened.
type ReentryManager struct {
	confidenceRatio float64
	gainRatio       float64

	mu     sync.RWMutex
	memory map[string]ExitMemory
}

// NewReentryManager creates a manager. Defaults are 0.95 and 1.1.
func NewReentryManager(confidenceRatio, gainRatio float64) *ReentryManager {
	return &ReentryManager{
		confidenceRatio: confidenceRatio,
		gainRatio:       gainRatio,
		memory:          make(map[string]ExitMemory),
	}
}

// RecordExit stores the exit context for symbol, replacing any earlier one.
func (r *ReentryManager) RecordExit(symbol string, reason models.ExitReason, confidence, gainPct float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memory[symbol] = ExitMemory{Reason: reason, Confidence: confidence, GainPct: gainPct}
}

// Known reports whether an exit was recorded for symbol.
func (r *ReentryManager) Known(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.memory[symbol]
	return ok
}

// LastExit returns the recorded exit for symbol.
func (r *ReentryManager) LastExit(symbol string) (ExitMemory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.memory[symbol]
	return m, ok
}

// ShouldReenter reports whether confidence and potential gain both clear
// the previous exit by the configured ratios. Unknown symbols never do.
func (r *ReentryManager) ShouldReenter(symbol string, confidence, gainPct float64) bool {
	last, ok := r.LastExit(symbol)
	if !ok {
		return false
	}
	return confidence > last.Confidence*r.confidenceRatio &&
		gainPct > last.GainPct*r.gainRatio
}

// ClearSymbol forgets symbol.
func (r *ReentryManager) ClearSymbol(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.memory, symbol)
}
