// Package risk implements the pre-trade risk gate: volatility, confidence,
// margin floor and per-trade risk checks plus confidence-tiered sizing.
package risk

import (
	"fmt"

	"github.com/Steinwealth/UltimaBot/internal/analysis/indicators"
	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

// Config holds risk gate thresholds.
type Config struct {
	AllocationPercent    float64
	MarginFloorBuffer    float64
	MaxTradeRisk         float64
	MaxAccountRisk       float64
	ConfidenceBuffer     float64
	MaxATRPercent        float64
	BaseAllocation       float64
	ConfidenceFloor      float64
	StreakBoostThreshold int
	StreakBoost          float64
}

// DefaultConfig returns the default risk thresholds.
func DefaultConfig() Config {
	return Config{
		AllocationPercent:    0.75,
		MarginFloorBuffer:    0.20,
		MaxTradeRisk:         0.02,
		MaxAccountRisk:       0.25,
		ConfidenceBuffer:     0.20,
		MaxATRPercent:        0.05,
		BaseAllocation:       0.02,
		ConfidenceFloor:      0.95,
		StreakBoostThreshold: 3,
		StreakBoost:          1.25,
	}
}

// Confidence tier thresholds, highest first.
var tierThresholds = []struct {
	min  float64
	tier int
}{
	{0.995, 3},
	{0.985, 2},
	{0.96, 1},
}

var tierMultipliers = [...]float64{1.0, 1.5, 2.0, 3.0}

// Gate evaluates risk rules. It holds no mutable state.
type Gate struct {
	cfg Config
}

// NewGate creates a risk gate.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Config returns the gate thresholds.
func (g *Gate) Config() Config {
	return g.cfg
}

func (g *Gate) totalPower(s models.AccountSnapshot) float64 {
	total := s.BuyingPower
	if s.MarginEnabled {
		total += s.MarginBalance
	}
	return total
}

// AvailableCapital returns the allocatable share of buying power plus
// margin balance when margin is enabled.
func (g *Gate) AvailableCapital(s models.AccountSnapshot) float64 {
	return g.totalPower(s) * g.cfg.AllocationPercent
}

// MarginFloorOK reports whether the unused share of total power stays at or
// above the floor buffer.
func (g *Gate) MarginFloorOK(s models.AccountSnapshot) bool {
	total := g.totalPower(s)
	if total <= 0 {
		return false
	}
	return (total-s.MarginUsed)/total >= g.cfg.MarginFloorBuffer
}

// TradeRiskOK reports whether risk stays within the per-trade share of
// balance. The executor passes the full position size as the risk amount.
func (g *Gate) TradeRiskOK(risk, balance float64) bool {
	if balance <= 0 {
		return false
	}
	return risk/balance <= g.cfg.MaxTradeRisk
}

// AccountRiskOK reports whether the exposure of every open position stays
// within the account-wide risk share.
func (g *Gate) AccountRiskOK(balance, exposure float64) bool {
	if balance <= 0 {
		return false
	}
	return exposure/balance <= g.cfg.MaxAccountRisk
}

// VolatilityOK reports whether atr/price is within the limit. A
// non-positive price counts as zero volatility.
func (g *Gate) VolatilityOK(atr, price float64) bool {
	return indicators.ATRPercent(atr, price) <= g.cfg.MaxATRPercent
}

// ConfidenceOK reports whether the forecast confidence meets the entry floor.
func (g *Gate) ConfidenceOK(confidence float64) bool {
	return confidence >= g.cfg.ConfidenceFloor
}

// PowerTier maps confidence to a sizing tier. A drop of at least the
// confidence buffer from the recent reading forces tier 0.
func (g *Gate) PowerTier(confidence float64, recent *float64) int {
	if recent != nil && *recent-confidence >= g.cfg.ConfidenceBuffer {
		return 0
	}
	for _, th := range tierThresholds {
		if confidence >= th.min {
			return th.tier
		}
	}
	return 0
}

// ScalingMultiplier returns the tier multiplier, boosted on a win streak.
func (g *Gate) ScalingMultiplier(tier, winStreak int) float64 {
	if tier < 0 {
		tier = 0
	}
	if tier >= len(tierMultipliers) {
		tier = len(tierMultipliers) - 1
	}
	m := tierMultipliers[tier]
	if winStreak >= g.cfg.StreakBoostThreshold {
		m *= g.cfg.StreakBoost
	}
	return m
}

// BaseSize returns the base position size for the capital.
func (g *Gate) BaseSize(capital float64) float64 {
	return capital * g.cfg.BaseAllocation
}

// Request bundles the inputs of a full evaluation.
type Request struct {
	Account          models.AccountSnapshot
	Forecast         models.ForecastResult
	Price            float64
	RecentConfidence *float64
	WinStreak        int
	Factor           float64 // compounding factor; 0 means 1
	OpenExposure     float64 // summed size of positions already open
}

// Evaluate runs every rule in pipeline order. Later fields are still
// filled when an earlier rule fails so callers can report them.
func (g *Gate) Evaluate(req Request) models.RiskDecision {
	d := models.RiskDecision{
		VolatilityOK:  g.VolatilityOK(req.Forecast.ATR, req.Price),
		ConfidenceOK:  g.ConfidenceOK(req.Forecast.Confidence),
		MarginFloorOK: g.MarginFloorOK(req.Account),
	}

	d.AvailableCapital = g.AvailableCapital(req.Account)
	d.Tier = g.PowerTier(req.Forecast.Confidence, req.RecentConfidence)
	d.Multiplier = g.ScalingMultiplier(d.Tier, req.WinStreak)
	d.BaseSize = g.BaseSize(d.AvailableCapital)

	factor := req.Factor
	if factor <= 0 {
		factor = 1.0
	}
	d.PositionSize = d.BaseSize * d.Multiplier * factor
	d.TradeRiskOK = g.TradeRiskOK(d.PositionSize, req.Account.Balance)
	d.AccountRiskOK = g.AccountRiskOK(req.Account.Balance, req.OpenExposure+d.PositionSize)

	return d
}

// Rejection returns the first failed rule of d as a RiskError, or nil.
func Rejection(symbol string, d models.RiskDecision) error {
	switch {
	case !d.VolatilityOK:
		return errors.NewRiskError("volatility", symbol, "ATR exceeds the volatility limit")
	case !d.ConfidenceOK:
		return errors.NewRiskError("confidence", symbol, "forecast confidence below floor")
	case !d.MarginFloorOK:
		return errors.NewRiskError("margin_floor", symbol, "margin floor breached")
	case !d.TradeRiskOK:
		return errors.NewRiskError("trade_risk", symbol, fmt.Sprintf("position %.2f exceeds per-trade risk", d.PositionSize))
	case !d.AccountRiskOK:
		return errors.NewRiskError("account_risk", symbol, "open exposure exceeds account risk")
	}
	return nil
}
