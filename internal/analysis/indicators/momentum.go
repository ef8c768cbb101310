package indicators

import (
	"github.com/markcheno/go-talib"
)

// RSI returns the latest Relative Strength Index value.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(closes) <= period {
		return 0, ErrInsufficientData
	}
	return last(talib.Rsi(closes, period)), nil
}

// EMA returns the latest exponential moving average value.
func EMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if len(closes) < period {
		return 0, ErrInsufficientData
	}
	return last(talib.Ema(closes, period)), nil
}

// MACDResult holds the latest MACD line, signal and histogram values.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD returns the latest MACD(fast, slow, signal) values.
func MACD(closes []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return MACDResult{}, ErrInvalidPeriod
	}
	if len(closes) < slow+signal-1 {
		return MACDResult{}, ErrInsufficientData
	}

	macd, sig, hist := talib.Macd(closes, fast, slow, signal)
	return MACDResult{
		MACD:      last(macd),
		Signal:    last(sig),
		Histogram: last(hist),
	}, nil
}
