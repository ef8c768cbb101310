// Package broker provides the broker client contract and its paper and
// Binance implementations.
package broker

import (
	"context"
	"time"

	"github.com/Steinwealth/UltimaBot/internal/models"
)

// Client defines the interface the engine uses to trade through a broker.
type Client interface {
	// ID returns the broker identifier used to key trades and streaks.
	ID() string

	// Market data
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetSymbols(ctx context.Context) ([]models.SymbolInfo, error)

	// Orders. OpenTrade returns the broker trade id; an empty id means no
	// trade was opened.
	OpenTrade(ctx context.Context, req OrderRequest) (string, error)
	CloseTrade(ctx context.Context, tradeID string, reason models.ExitReason) error
	UpdateTrade(ctx context.Context, trade models.Trade) error

	// Account
	GetAccountInfo(ctx context.Context) (models.AccountSnapshot, error)
	GetOpenTrades(ctx context.Context) ([]Position, error)
}

// MarketData is implemented by brokers able to serve candle history.
type MarketData interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// PriceSource serves last traded prices. Both broker implementations satisfy it.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// OrderRequest represents a market entry.
type OrderRequest struct {
	Symbol     string
	Side       models.Side
	Size       float64 // quote-currency notional
	Price      float64 // reference price at decision time
	TakeProfit float64
	StopLoss   float64
	Confidence float64
}

// Position is an open position as the broker sees it.
type Position struct {
	TradeID    string
	Symbol     string
	Side       models.Side
	Quantity   float64
	EntryPrice float64
	Size       float64
	TakeProfit float64
	StopLoss   float64
	OpenedAt   time.Time
}
