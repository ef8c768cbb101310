package trading

import (
	"sort"
	"strings"
	"sync"

	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

// entry guards one open trade. Every evaluation and close of the trade
// holds mu.
type entry struct {
	mu    sync.Mutex
	trade *models.Trade

	// immutable after Add
	brokerID string
	symbol   string
}

// OpenTrades is the book of open trades keyed by trade id.
type OpenTrades struct {
	mu     sync.RWMutex
	trades map[string]*entry
}

// NewOpenTrades creates an empty book.
func NewOpenTrades() *OpenTrades {
	return &OpenTrades{trades: make(map[string]*entry)}
}

// Add registers an open trade. The book takes ownership of t.
func (b *OpenTrades) Add(t *models.Trade) error {
	if t == nil || t.TradeID == "" {
		return errors.NewValidationError("trade_id", "", "trade id is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.trades[t.TradeID]; ok {
		return errors.Wrapf(errors.ErrDuplicateTrade, "trade %s", t.TradeID)
	}
	if t.Status == "" {
		t.Status = models.TradeOpen
	}
	b.trades[t.TradeID] = &entry{
		trade:    t,
		brokerID: t.BrokerID,
		symbol:   strings.ToUpper(t.Symbol),
	}
	return nil
}

func (b *OpenTrades) entry(id string) (*entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.trades[id]
	return e, ok
}

// Get returns a copy of the trade.
func (b *OpenTrades) Get(id string) (models.Trade, bool) {
	e, ok := b.entry(id)
	if !ok {
		return models.Trade{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trade.Clone(), true
}

// IDs returns the ids of the open trades, sorted.
func (b *OpenTrades) IDs() []string {
	b.mu.RLock()
	ids := make([]string, 0, len(b.trades))
	for id := range b.trades {
		ids = append(ids, id)
	}
	b.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Snapshot returns copies of every open trade, ordered by id.
func (b *OpenTrades) Snapshot() []models.Trade {
	ids := b.IDs()
	out := make([]models.Trade, 0, len(ids))
	for _, id := range ids {
		if t, ok := b.Get(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// Exposure sums the size of the broker's open trades.
func (b *OpenTrades) Exposure(brokerID string) float64 {
	var total float64
	for _, t := range b.Snapshot() {
		if t.BrokerID == brokerID && t.Status == models.TradeOpen {
			total += t.Size
		}
	}
	return total
}

// Remove drops a trade from the book without closing it.
func (b *OpenTrades) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.trades[id]; !ok {
		return false
	}
	delete(b.trades, id)
	return true
}

// HasOpen reports whether the broker holds an open trade on symbol.
func (b *OpenTrades) HasOpen(brokerID, symbol string) bool {
	symbol = strings.ToUpper(symbol)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.trades {
		if e.brokerID == brokerID && e.symbol == symbol {
			return true
		}
	}
	return false
}

// Len returns the number of open trades.
func (b *OpenTrades) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.trades)
}
