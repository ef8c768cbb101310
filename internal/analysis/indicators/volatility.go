package indicators

import "math"

// DefaultATRPeriod is the true range window used by the forecast model.
const DefaultATRPeriod = 14

// TrueRanges returns TR_i = max(h_i-l_i, |h_i-c_{i-1}|, |l_i-c_{i-1}|) for
// every i >= 1. Series of unequal length are truncated to the shortest.
func TrueRanges(highs, lows, closes []float64) []float64 {
	n := minLen(len(highs), len(lows), len(closes))
	if n < 2 {
		return nil
	}

	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		tr := math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		trs = append(trs, tr)
	}
	return trs
}

// ATR returns the simple mean of the last period true ranges, or of all of
// them when fewer exist. Fewer than two closes yield 0.
func ATR(highs, lows, closes []float64, period int) float64 {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	return Mean(tail(TrueRanges(highs, lows, closes), period))
}

// ATRPercent returns atr/price, treating a non-positive price as 0.
func ATRPercent(atr, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return atr / price
}
