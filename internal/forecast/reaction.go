package forecast

import "math"

// ReactionCurve nudges an open trade's confidence by how the market has
// reacted since entry.
type ReactionCurve struct {
	Sensitivity float64
	Min         float64
	Max         float64
}

// NewReactionCurve returns the curve with the default sensitivity of 0.05
// and a [0.85, 1.0] clamp.
func NewReactionCurve() *ReactionCurve {
	return &ReactionCurve{Sensitivity: 0.05, Min: 0.85, Max: 1.0}
}

// Adjust returns confidence*(1+factor), clamped. Strong trends in calm
// markets raise confidence in proportion to the move; volatility above 3
// lowers it.
func (c *ReactionCurve) Adjust(confidence, priceMovePct, volatility, trend float64) float64 {
	adjusted := confidence * (1 + c.factor(priceMovePct, volatility, trend))
	return math.Max(c.Min, math.Min(adjusted, c.Max))
}

func (c *ReactionCurve) factor(priceMovePct, volatility, trend float64) float64 {
	if trend > 1.2 && volatility < 2.0 {
		return c.Sensitivity * (priceMovePct / 100)
	}
	if volatility > 3.0 {
		return -c.Sensitivity * (volatility / 3)
	}
	return 0
}
