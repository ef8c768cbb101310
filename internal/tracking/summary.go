package tracking

import (
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/pkg/utils"
)

// DefaultSummaryCap bounds the in-memory close record list.
const DefaultSummaryCap = 10000

// NewCloseRecord builds the close record of t exiting at price. Gains are
// side aware and rounded to cents.
func NewCloseRecord(t models.Trade, price float64, reason models.ExitReason, closedAt time.Time) models.CloseRecord {
	gain := price - t.EntryPrice
	if t.Side == models.SideSell {
		gain = -gain
	}

	var gainPct float64
	if t.EntryPrice != 0 {
		gainPct = gain / t.EntryPrice * 100
	}

	return models.CloseRecord{
		RecordID:   ulid.Make().String(),
		TradeID:    t.TradeID,
		Symbol:     t.Symbol,
		BrokerID:   t.BrokerID,
		Side:       t.Side,
		Mode:       t.Mode,
		ModelID:    t.ModelID,
		StrategyID: t.StrategyID,
		Confidence: t.InitialConfidence,
		Size:       t.Size,
		EntryPrice: t.EntryPrice,
		ExitPrice:  price,
		GainPct:    utils.Round2(gainPct),
		GainUSD:    utils.Round2(gainPct * t.Size / 100),
		Reason:     reason,
		OpenedAt:   t.EntryTime,
		ClosedAt:   closedAt,
	}
}

// TradeSummary keeps the close records of this session.
type TradeSummary struct {
	mu      sync.RWMutex
	records []models.CloseRecord
	cap     int
}

// NewTradeSummary creates a summary keeping at most capacity records.
func NewTradeSummary(capacity int) *TradeSummary {
	if capacity <= 0 {
		capacity = DefaultSummaryCap
	}
	return &TradeSummary{cap: capacity}
}

// Record appends the close record of a closed trade and returns it. The
// trade's exit fields must be set.
func (s *TradeSummary) Record(t models.Trade) models.CloseRecord {
	r := NewCloseRecord(t, t.ExitPrice, t.ExitReason, t.ExitTime)
	s.Add(r)
	return r
}

// Add appends r, dropping the oldest record when full.
func (s *TradeSummary) Add(r models.CloseRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	if over := len(s.records) - s.cap; over > 0 {
		s.records = append([]models.CloseRecord(nil), s.records[over:]...)
	}
}

// All returns a copy of the records, oldest first.
func (s *TradeSummary) All() []models.CloseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CloseRecord(nil), s.records...)
}

// Len returns the number of records held.
func (s *TradeSummary) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Aggregate summarises the held records.
func (s *TradeSummary) Aggregate() Stats {
	return Aggregate(s.All())
}

// Stats is the aggregate P&L of a set of close records.
type Stats struct {
	Trades       int                       `json:"trades"`
	Wins         int                       `json:"wins"`
	Losses       int                       `json:"losses"`
	WinRate      float64                   `json:"win_rate"`
	TotalGainPct float64                   `json:"total_gain_pct"`
	AvgGainPct   float64                   `json:"avg_gain_pct"`
	TotalGainUSD float64                   `json:"total_gain_usd"`
	Best         *models.CloseRecord       `json:"best,omitempty"`
	Worst        *models.CloseRecord       `json:"worst,omitempty"`
	ByReason     map[models.ExitReason]int `json:"by_reason"`
	ByStrategy   []StrategyStats           `json:"by_strategy"`
}

// StrategyStats is the P&L attributed to one discovery strategy.
type StrategyStats struct {
	StrategyID   string  `json:"strategy_id"`
	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	TotalGainUSD float64 `json:"total_gain_usd"`
}

// Aggregate computes Stats over records.
func Aggregate(records []models.CloseRecord) Stats {
	st := Stats{ByReason: make(map[models.ExitReason]int)}
	byStrategy := make(map[string]*StrategyStats)

	for i := range records {
		r := records[i]
		st.Trades++
		if r.Win() {
			st.Wins++
		} else {
			st.Losses++
		}
		st.TotalGainPct += r.GainPct
		st.TotalGainUSD += r.GainUSD
		st.ByReason[r.Reason]++

		if st.Best == nil || r.GainPct > st.Best.GainPct {
			st.Best = &records[i]
		}
		if st.Worst == nil || r.GainPct < st.Worst.GainPct {
			st.Worst = &records[i]
		}

		id := r.StrategyID
		if id == "" {
			id = "unknown"
		}
		ss, ok := byStrategy[id]
		if !ok {
			ss = &StrategyStats{StrategyID: id}
			byStrategy[id] = ss
		}
		ss.Trades++
		if r.Win() {
			ss.Wins++
		}
		ss.TotalGainUSD = utils.Round2(ss.TotalGainUSD + r.GainUSD)
	}

	if st.Trades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.Trades)
		st.AvgGainPct = utils.Round2(st.TotalGainPct / float64(st.Trades))
	}
	st.TotalGainPct = utils.Round2(st.TotalGainPct)
	st.TotalGainUSD = utils.Round2(st.TotalGainUSD)

	for _, ss := range byStrategy {
		st.ByStrategy = append(st.ByStrategy, *ss)
	}
	sort.Slice(st.ByStrategy, func(i, j int) bool {
		if st.ByStrategy[i].TotalGainUSD == st.ByStrategy[j].TotalGainUSD {
			return st.ByStrategy[i].StrategyID < st.ByStrategy[j].StrategyID
		}
		return st.ByStrategy[i].TotalGainUSD > st.ByStrategy[j].TotalGainUSD
	})
	return st
}
