package indicators

// Velocity returns the fractional price change over the last lookback
// closes. Too few closes or a non-positive base price yield 0.
func Velocity(closes []float64, lookback int) float64 {
	if lookback <= 0 || len(closes) <= lookback {
		return 0
	}
	base := closes[len(closes)-1-lookback]
	if base <= 0 {
		return 0
	}
	return (closes[len(closes)-1] - base) / base
}

// QuoteVolume returns volume*close of the latest candle.
func QuoteVolume(volumes, closes []float64) float64 {
	n := minLen(len(volumes), len(closes))
	if n == 0 {
		return 0
	}
	return volumes[n-1] * closes[n-1]
}

// SpikeCandles counts the candles in the last window whose volume exceeds
// factor times the window mean.
func SpikeCandles(volumes []float64, window int, factor float64) int {
	recent := tail(volumes, window)
	avg := Mean(recent)
	if avg <= 0 {
		return 0
	}

	count := 0
	for _, v := range recent {
		if v > avg*factor {
			count++
		}
	}
	return count
}
