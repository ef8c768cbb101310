package risk

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

const eps = 1e-9

func ptr(v float64) *float64 { return &v }

func TestAvailableCapitalAndBaseSize(t *testing.T) {
	g := NewGate(DefaultConfig())
	s := models.AccountSnapshot{Balance: 10000, BuyingPower: 8000, MarginBalance: 5000, MarginEnabled: false}

	capital := g.AvailableCapital(s)
	if math.Abs(capital-6000) > eps {
		t.Fatalf("AvailableCapital = %v, want 6000", capital)
	}
	if base := g.BaseSize(capital); math.Abs(base-120) > eps {
		t.Errorf("BaseSize = %v, want 120", base)
	}

	s.MarginEnabled = true
	if got := g.AvailableCapital(s); math.Abs(got-9750) > eps {
		t.Errorf("AvailableCapital with margin = %v, want 9750", got)
	}
}

func TestTierAndStreakBoost(t *testing.T) {
	g := NewGate(DefaultConfig())

	tier := g.PowerTier(0.995, nil)
	if tier != 3 {
		t.Fatalf("PowerTier(0.995) = %d, want 3", tier)
	}
	if m := g.ScalingMultiplier(tier, 4); math.Abs(m-3.75) > eps {
		t.Errorf("ScalingMultiplier(3, 4) = %v, want 3.75", m)
	}
	if m := g.ScalingMultiplier(tier, 2); m != 3.0 {
		t.Errorf("ScalingMultiplier(3, 2) = %v, want 3.0", m)
	}
}

func TestPowerTierThresholds(t *testing.T) {
	g := NewGate(DefaultConfig())
	tests := []struct {
		conf   float64
		recent *float64
		want   int
	}{
		{0.95, nil, 0},
		{0.96, nil, 1},
		{0.985, nil, 2},
		{0.999, nil, 3},
		{0.999, ptr(1.0), 3},
		{0.79, ptr(0.99), 0},
		{0.97, ptr(1.18), 0},
	}
	for _, tt := range tests {
		if got := g.PowerTier(tt.conf, tt.recent); got != tt.want {
			t.Errorf("PowerTier(%v) = %d, want %d", tt.conf, got, tt.want)
		}
	}
}

func TestMarginFloor(t *testing.T) {
	g := NewGate(DefaultConfig())

	tests := []struct {
		name string
		s    models.AccountSnapshot
		want bool
	}{
		{"no funds", models.AccountSnapshot{}, false},
		{"plenty", models.AccountSnapshot{BuyingPower: 1000, MarginUsed: 100}, true},
		{"exactly at floor", models.AccountSnapshot{BuyingPower: 1000, MarginUsed: 800}, true},
		{"below floor", models.AccountSnapshot{BuyingPower: 1000, MarginUsed: 801}, false},
		{"margin counted", models.AccountSnapshot{BuyingPower: 500, MarginBalance: 500, MarginEnabled: true, MarginUsed: 700}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.MarginFloorOK(tt.s); got != tt.want {
				t.Errorf("MarginFloorOK = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolatilityAndRiskChecks(t *testing.T) {
	g := NewGate(DefaultConfig())

	if !g.VolatilityOK(10, 0) {
		t.Error("non-positive price should pass the volatility filter")
	}
	if !g.VolatilityOK(5, 100) {
		t.Error("atr/price of exactly 5% should pass")
	}
	if g.VolatilityOK(5.1, 100) {
		t.Error("atr/price above 5% should fail")
	}

	if !g.TradeRiskOK(200, 10000) || g.TradeRiskOK(201, 10000) {
		t.Error("trade risk cap should be 2% of balance inclusive")
	}
	if g.TradeRiskOK(1, 0) {
		t.Error("zero balance should fail trade risk")
	}
	if !g.AccountRiskOK(10000, 2500) || g.AccountRiskOK(10000, 2600) {
		t.Error("account risk cap should be 25% of balance inclusive")
	}
}

func TestEvaluate(t *testing.T) {
	g := NewGate(DefaultConfig())
	req := Request{
		Account:   models.AccountSnapshot{Balance: 10000, BuyingPower: 8000},
		Forecast:  models.ForecastResult{ATR: 1, Confidence: 0.96, SL: 0.9},
		Price:     100,
		WinStreak: 0,
	}

	d := g.Evaluate(req)
	if !d.Approved() {
		t.Fatalf("decision %+v should be approved", d)
	}
	// 6000 * 0.02 * 1.5
	if math.Abs(d.PositionSize-180) > eps {
		t.Errorf("PositionSize = %v, want 180", d.PositionSize)
	}
	if err := Rejection("BTCUSDT", d); err != nil {
		t.Errorf("Rejection = %v, want nil", err)
	}

	req.Forecast.Confidence = 0.999
	req.WinStreak = 5
	d = g.Evaluate(req)
	// 120 * 3.75 = 450 > 2% of 10000
	if d.TradeRiskOK {
		t.Errorf("decision %+v should fail trade risk", d)
	}
	var re *errors.RiskError
	if err := Rejection("BTCUSDT", d); !errors.As(err, &re) || re.Rule != "trade_risk" {
		t.Errorf("Rejection = %v, want trade_risk RiskError", err)
	}
}

func TestEvaluateAccountRisk(t *testing.T) {
	g := NewGate(DefaultConfig())
	req := Request{
		Account:  models.AccountSnapshot{Balance: 10000, BuyingPower: 8000},
		Forecast: models.ForecastResult{ATR: 1, Confidence: 0.955, SL: 0.9},
		Price:    100,
	}

	// 2380 open + 120 new = 25%
	req.OpenExposure = 2380
	if d := g.Evaluate(req); !d.AccountRiskOK || !d.Approved() {
		t.Errorf("decision %+v should be approved at the cap", d)
	}

	req.OpenExposure = 2400
	d := g.Evaluate(req)
	if d.AccountRiskOK || d.Approved() {
		t.Errorf("decision %+v should fail account risk", d)
	}
	var re *errors.RiskError
	if err := Rejection("BTCUSDT", d); !errors.As(err, &re) || re.Rule != "account_risk" {
		t.Errorf("Rejection = %v, want account_risk RiskError", err)
	}
}

func TestProperty_PowerTierMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	g := NewGate(DefaultConfig())

	properties.Property("tier is non-decreasing in confidence", prop.ForAll(
		func(a, b float64) bool {
			lo, hi := math.Min(a, b), math.Max(a, b)
			return g.PowerTier(lo, nil) <= g.PowerTier(hi, nil)
		},
		gen.Float64Range(0.9, 1.0),
		gen.Float64Range(0.9, 1.0),
	))

	properties.Property("tier is 0 after a confidence drop of at least 0.20", prop.ForAll(
		func(conf, drop float64) bool {
			recent := conf + drop
			return g.PowerTier(conf, &recent) == 0
		},
		gen.Float64Range(0.0, 1.0),
		gen.Float64Range(0.2001, 1.0),
	))

	properties.TestingRun(t)
}
