// Package forecast derives take-profit and stop-loss distances and an entry
// confidence from recent price history.
package forecast

import (
	"math"

	"github.com/Steinwealth/UltimaBot/internal/analysis/indicators"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

// Params is the per-mode multiplier set.
type Params struct {
	TPMultiplier   float64
	SLMultiplier   float64
	TrailingAnchor float64
}

var (
	easyParams = Params{TPMultiplier: 2.0, SLMultiplier: 0.9, TrailingAnchor: 0.75}
	// Hero trades hold deep, so they share the Hard set.
	hardParams = Params{TPMultiplier: 3.0, SLMultiplier: 0.7, TrailingAnchor: 0.55}
)

// ParamsFor returns the multiplier set for a mode name. Unknown modes get
// the Easy set.
func ParamsFor(mode string) Params {
	switch mode {
	case models.ModeHard, models.ModeHero:
		return hardParams
	}
	return easyParams
}

// Model is the ATR and trend based forecast model.
type Model struct {
	mode        string
	params      Params
	trailToMoon bool
	atrPeriod   int
}

// NewModel creates a forecast model for the given mode.
func NewModel(mode string, trailToMoon bool) *Model {
	return &Model{
		mode:        mode,
		params:      ParamsFor(mode),
		trailToMoon: trailToMoon,
		atrPeriod:   indicators.DefaultATRPeriod,
	}
}

// Mode returns the mode the model was built for.
func (m *Model) Mode() string {
	return m.mode
}

// Forecast evaluates the price history. It never fails: short or flat
// input produces zero distances and the base confidence.
func (m *Model) Forecast(highs, lows, closes []float64, breakoutVelocity float64) models.ForecastResult {
	atr := indicators.ATR(highs, lows, closes, m.atrPeriod)
	trend := indicators.TrendStrength(closes)
	return m.FromComponents(atr, trend, breakoutVelocity)
}

// FromComponents builds the forecast from an already computed ATR and trend
// strength.
func (m *Model) FromComponents(atr, trend, breakoutVelocity float64) models.ForecastResult {
	if trend < 1.0 || math.IsNaN(trend) {
		trend = 1.0
	}

	tp := atr * m.params.TPMultiplier * trend
	sl := atr * m.params.SLMultiplier / trend

	if m.trailToMoon && breakoutVelocity > 0 {
		tp *= 1 + breakoutVelocity
	}

	return models.ForecastResult{
		TP:             tp,
		SL:             sl,
		Confidence:     Confidence(trend),
		TrailingAnchor: m.params.TrailingAnchor,
		ATR:            atr,
		TrendStrength:  trend,
	}
}

// Confidence maps trend strength to min(1, 0.9 + (trend-1)*0.05).
func Confidence(trend float64) float64 {
	return math.Min(1.0, 0.9+(trend-1.0)*0.05)
}

// ForecastMarket is a convenience wrapper over models.MarketData.
func (m *Model) ForecastMarket(md models.MarketData) models.ForecastResult {
	return m.Forecast(md.Highs, md.Lows, md.Closes, md.Velocity)
}
