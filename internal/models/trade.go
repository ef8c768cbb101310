package models

import "time"

// RecentPriceWindow is the number of prices kept on a trade for momentum checks.
const RecentPriceWindow = 3

// TradeStatus represents the lifecycle state of a trade.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// ExitReason represents the reason a trade was closed.
type ExitReason string

const (
	ExitTakeProfit      ExitReason = "take_profit"
	ExitStopLoss        ExitReason = "stop_loss"
	ExitConfidence      ExitReason = "confidence_exit"
	ExitHeroModeTimeout ExitReason = "hero_mode_timeout"
	ExitManual          ExitReason = "manual_close"
)

// Trade represents a trade opened by the engine.
type Trade struct {
	TradeID           string
	Symbol            string
	BrokerID          string
	Side              Side
	EntryPrice        float64
	Size              float64 // quote-currency notional
	TakeProfit        float64
	StopLoss          float64
	ForecastTP        *float64
	InitialConfidence float64
	CurrentConfidence float64
	Mode              string
	EntryTime         time.Time
	ATR               float64
	TrendStrength     float64
	TrailingAnchor    float64
	RecentPrices      []float64
	ModelID           string
	StrategyID        string
	Status            TradeStatus

	ExitPrice  float64
	ExitReason ExitReason
	ExitTime   time.Time
}

// IsProfitable reports whether price is on the winning side of the entry.
func (t *Trade) IsProfitable(price float64) bool {
	if t.Side == SideSell {
		return price < t.EntryPrice
	}
	return price > t.EntryPrice
}

// PushPrice appends price to the bounded recent price window.
func (t *Trade) PushPrice(price float64) {
	t.RecentPrices = append(t.RecentPrices, price)
	if n := len(t.RecentPrices); n > RecentPriceWindow {
		t.RecentPrices = append([]float64(nil), t.RecentPrices[n-RecentPriceWindow:]...)
	}
}

// Clone returns a deep copy of the trade.
func (t *Trade) Clone() Trade {
	c := *t
	if t.ForecastTP != nil {
		v := *t.ForecastTP
		c.ForecastTP = &v
	}
	c.RecentPrices = append([]float64(nil), t.RecentPrices...)
	return c
}

// CloseRecord is the immutable summary of a closed trade.
type CloseRecord struct {
	RecordID   string
	TradeID    string
	Symbol     string
	BrokerID   string
	Side       Side
	Mode       string
	ModelID    string
	StrategyID string
	Confidence float64
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	GainPct    float64
	GainUSD    float64
	Reason     ExitReason
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Win reports whether the trade closed with a positive gain.
func (r CloseRecord) Win() bool {
	return r.GainPct > 0
}
