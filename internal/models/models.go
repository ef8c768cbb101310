// Package models provides domain models for the trading engine.
package models

import (
	"time"
)

// AssetClass represents the market a broker trades.
type AssetClass string

const (
	AssetCrypto AssetClass = "crypto"
	AssetStock  AssetClass = "stock"
)

// Side represents the side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the side that closes a position opened on s.
func (s Side) Opposite() Side {
	if s == SideSell {
		return SideBuy
	}
	return SideSell
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// SymbolInfo describes a tradable symbol as reported by a broker.
type SymbolInfo struct {
	Symbol    string
	Volume24h float64
	LastPrice float64
}

// MarketData is the price series handed to the executor for one symbol.
type MarketData struct {
	Price    float64
	Highs    []float64
	Lows     []float64
	Closes   []float64
	Velocity float64 // breakout velocity; > 0 enables trail-to-moon extension
}

// MarketDataFromCandles builds MarketData from a candle series. The last
// close is used as the price.
func MarketDataFromCandles(candles []Candle, velocity float64) MarketData {
	md := MarketData{
		Highs:    make([]float64, len(candles)),
		Lows:     make([]float64, len(candles)),
		Closes:   make([]float64, len(candles)),
		Velocity: velocity,
	}
	for i, c := range candles {
		md.Highs[i] = c.High
		md.Lows[i] = c.Low
		md.Closes[i] = c.Close
	}
	if len(candles) > 0 {
		md.Price = candles[len(candles)-1].Close
	}
	return md
}

// AccountSnapshot is a read-only view of a broker account, refreshed per
// decision cycle.
type AccountSnapshot struct {
	BrokerID      string
	ModelID       string
	Balance       float64
	CashAvailable float64
	BuyingPower   float64
	MarginBalance float64
	MarginUsed    float64
	MarginEnabled bool
	MarginPercent float64
}

// ForecastResult is the output of a single forecast evaluation.
type ForecastResult struct {
	TP             float64 // distance from entry, not a price level
	SL             float64 // distance from entry, not a price level
	Confidence     float64
	TrailingAnchor float64
	ATR            float64
	TrendStrength  float64
}

// RiskDecision records the outcome of every risk rule for one candidate.
type RiskDecision struct {
	VolatilityOK     bool
	ConfidenceOK     bool
	MarginFloorOK    bool
	TradeRiskOK      bool
	AccountRiskOK    bool
	Tier             int
	Multiplier       float64
	AvailableCapital float64
	BaseSize         float64
	PositionSize     float64
}

// Approved reports whether every rule passed.
func (d RiskDecision) Approved() bool {
	return d.VolatilityOK && d.ConfidenceOK && d.MarginFloorOK && d.TradeRiskOK && d.AccountRiskOK
}
