// Package confidence provides the pluggable confidence models and the
// registry that tracks their live performance.
package confidence

import (
	"math"

	"github.com/Steinwealth/UltimaBot/internal/analysis/indicators"
	"github.com/Steinwealth/UltimaBot/internal/forecast"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

const rsiPeriod = 14

// Feature names shared by the feature sources and the models.
const (
	FeatureTrendStrength = "trend_strength"
	FeaturePriceMovePct  = "price_move_pct"
	FeatureVolatility    = "volatility"
	FeatureRSI           = "rsi"
	FeatureMACD          = "macd"
	FeatureATRPercent    = "atr_percent"
	FeatureVelocity      = "velocity"
)

// Features is a named feature snapshot.
type Features map[string]float64

// Model scores a feature snapshot. Implementations return a value in [0, 1].
type Model interface {
	Predict(features Features) float64
}

// ForecastFeatures builds the snapshot a model scores at entry from the
// market data and its forecast.
func ForecastFeatures(md models.MarketData, fc models.ForecastResult) Features {
	f := Features{
		FeatureTrendStrength: fc.TrendStrength,
		FeatureATRPercent:    indicators.ATRPercent(fc.ATR, md.Price),
		FeatureVelocity:      md.Velocity,
	}
	if rsi, err := indicators.RSI(md.Closes, rsiPeriod); err == nil {
		f[FeatureRSI] = rsi
	}
	return f
}

// ModelFunc adapts a function to Model.
type ModelFunc func(Features) float64

// Predict calls f.
func (f ModelFunc) Predict(features Features) float64 {
	return f(features)
}

// TrendModel scores by trend strength and, when the snapshot carries a
// price move and volatility, by the market's reaction since entry.
type TrendModel struct {
	curve *forecast.ReactionCurve
}

// NewTrendModel creates the built-in trend model.
func NewTrendModel() *TrendModel {
	return &TrendModel{curve: forecast.NewReactionCurve()}
}

// Predict implements Model.
func (m *TrendModel) Predict(f Features) float64 {
	trend, ok := f[FeatureTrendStrength]
	if !ok || math.IsNaN(trend) || trend < 1 {
		trend = 1
	}
	conf := forecast.Confidence(trend)

	move, hasMove := f[FeaturePriceMovePct]
	vol, hasVol := f[FeatureVolatility]
	if hasMove && hasVol {
		conf = m.curve.Adjust(conf, move, vol, trend)
	}
	return clamp01(conf)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
