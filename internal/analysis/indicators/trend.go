package indicators

import "math"

// TrendWindow is the number of closes used to measure trend strength.
const TrendWindow = 5

// TrendStrength measures how far the recent move outruns its own noise:
// slope = (last-first)/5 over the last five closes, divided by their
// population standard deviation. A flat window yields 1.0 and the result is
// never below 1.0.
func TrendStrength(closes []float64) float64 {
	recent := tail(closes, TrendWindow)
	if len(recent) == 0 {
		return 1.0
	}

	slope := (recent[len(recent)-1] - recent[0]) / TrendWindow
	sd := StdDev(recent)
	if sd == 0 {
		return 1.0
	}
	return math.Max(1.0, math.Abs(slope)/sd)
}
