package indicators

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const eps = 1e-9

// series generates a positive price series with the given length bounds.
func series(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, gen.Float64Range(1.0, 1000.0)).Map(func(v []float64) []float64 {
		for len(v) < minLen {
			v = append(v, 100.0)
		}
		return v
	})
}

func TestATRKnownValues(t *testing.T) {
	highs := []float64{10, 11, 12}
	lows := []float64{9, 10, 11}
	closes := []float64{9.5, 10.5, 11.5}

	// TR1 = max(1, 1.5, 0.5) = 1.5, TR2 = max(1, 1.5, 0.5) = 1.5
	if got := ATR(highs, lows, closes, 14); math.Abs(got-1.5) > eps {
		t.Errorf("ATR = %v, want 1.5", got)
	}

	if got := ATR([]float64{10}, []float64{9}, []float64{9.5}, 14); got != 0 {
		t.Errorf("ATR with one close = %v, want 0", got)
	}
}

func TestATRUsesLastPeriod(t *testing.T) {
	var highs, lows, closes []float64
	for i := 0; i < 30; i++ {
		spread := 1.0
		if i >= 16 {
			spread = 2.0
		}
		highs = append(highs, 100+spread/2)
		lows = append(lows, 100-spread/2)
		closes = append(closes, 100)
	}

	if got := ATR(highs, lows, closes, 14); math.Abs(got-2.0) > eps {
		t.Errorf("ATR = %v, want 2.0", got)
	}
}

func TestTrendStrength(t *testing.T) {
	if got := TrendStrength([]float64{5, 5, 5, 5, 5}); got != 1.0 {
		t.Errorf("flat TrendStrength = %v, want 1.0", got)
	}
	if got := TrendStrength(nil); got != 1.0 {
		t.Errorf("empty TrendStrength = %v, want 1.0", got)
	}

	// slope = (104-100)/5 = 0.8, population sd of 100..104 = sqrt(2)
	got := TrendStrength([]float64{90, 100, 101, 102, 103, 104})
	if math.Abs(got-1.0) > eps {
		t.Errorf("TrendStrength = %v, want 1.0 (0.8/1.414 floored)", got)
	}
}

func TestMomentumInsufficientData(t *testing.T) {
	short := []float64{1, 2, 3}
	if _, err := RSI(short, 14); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("RSI error = %v, want ErrInsufficientData", err)
	}
	if _, err := MACD(short, 12, 26, 9); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("MACD error = %v, want ErrInsufficientData", err)
	}
	if _, err := EMA(short, 5); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("EMA error = %v, want ErrInsufficientData", err)
	}
	if _, err := MACD(make([]float64, 50), 26, 12, 9); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("MACD error = %v, want ErrInvalidPeriod", err)
	}
}

func TestMACDRisingSeries(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	m, err := MACD(closes, 12, 26, 9)
	if err != nil {
		t.Fatal(err)
	}
	if m.MACD <= 0 {
		t.Errorf("MACD on rising series = %v, want > 0", m.MACD)
	}

	fast, _ := EMA(closes, 5)
	slow, _ := EMA(closes, 15)
	if fast <= slow {
		t.Errorf("EMA5 = %v <= EMA15 = %v on rising series", fast, slow)
	}
}

func TestVolumeHelpers(t *testing.T) {
	if got := Velocity([]float64{100, 101, 102, 110}, 3); math.Abs(got-0.10) > eps {
		t.Errorf("Velocity = %v, want 0.10", got)
	}
	if got := Velocity([]float64{100}, 3); got != 0 {
		t.Errorf("Velocity short = %v, want 0", got)
	}
	if got := QuoteVolume([]float64{10, 20}, []float64{2, 3}); got != 60 {
		t.Errorf("QuoteVolume = %v, want 60", got)
	}
	vols := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 20}
	if got := SpikeCandles(vols, 10, 2); got != 1 {
		t.Errorf("SpikeCandles = %d, want 1", got)
	}
}

func TestProperty_ATRIsNonNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("ATR values are non-negative", prop.ForAll(
		func(highs, lows, closes []float64) bool {
			return ATR(highs, lows, closes, DefaultATRPeriod) >= 0
		},
		series(0, 40),
		series(0, 40),
		series(0, 40),
	))

	properties.TestingRun(t)
}

func TestProperty_TrendStrengthAtLeastOne(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("trend strength is never below 1", prop.ForAll(
		func(closes []float64) bool {
			return TrendStrength(closes) >= 1.0
		},
		series(0, 20),
	))

	properties.TestingRun(t)
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI is within [0, 100]", prop.ForAll(
		func(closes []float64) bool {
			rsi, err := RSI(closes, 14)
			if err != nil {
				return true
			}
			return rsi >= 0 && rsi <= 100
		},
		series(15, 60),
	))

	properties.TestingRun(t)
}
