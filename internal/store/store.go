// Package store provides trade persistence interfaces and implementations.
package store

import (
	"context"
	"time"
)

// TradeStore persists the open and close events of every trade.
type TradeStore interface {
	// InsertTrade records a newly opened trade.
	InsertTrade(ctx context.Context, rec TradeRecord) error
	// UpdateTrade applies the close fields to a stored trade.
	UpdateTrade(ctx context.Context, tradeID string, upd TradeUpdate) error
	// GetTradeHistory returns stored trades, newest first.
	GetTradeHistory(ctx context.Context, filter TradeFilter) ([]TradeRecord, error)

	Ping(ctx context.Context) error
	Close() error
}

// TradeRecord is a persisted trade together with the account snapshot taken
// when it was opened.
type TradeRecord struct {
	TradeID    string
	Symbol     string
	BrokerID   string
	Side       string
	Mode       string
	ModelID    string
	StrategyID string
	EntryPrice float64
	Size       float64
	TakeProfit float64
	StopLoss   float64
	Confidence float64
	EntryTime  time.Time
	Status     string

	// Capital snapshot at entry
	Balance     float64
	BuyingPower float64
	MarginUsed  float64

	// Set once closed
	ExitPrice  float64
	ExitReason string
	ExitTime   time.Time
	GainPct    float64
	GainUSD    float64
}

// TradeUpdate carries the fields written when a trade closes.
type TradeUpdate struct {
	Status     string
	StopLoss   float64
	ExitPrice  float64
	ExitReason string
	ExitTime   time.Time
	GainPct    float64
	GainUSD    float64
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	Symbol   string
	BrokerID string
	Status   string
	Limit    int
}
