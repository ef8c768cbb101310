package policy

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

func mustModes(t *testing.T, name string) *ModeManager {
	t.Helper()
	m, err := NewModeManager(name)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestModeManager(t *testing.T) {
	m := mustModes(t, models.ModeEasy)
	if got := m.Active(); got.ConfidenceFloor != 0.93 || got.MaxScaling != 2.0 || got.RiskTolerance != "low" {
		t.Errorf("Easy settings = %+v", got)
	}

	var seen string
	m.OnChange(func(s models.ModeSettings) { seen = s.Name })

	if err := m.SetMode(models.ModeHero); err != nil {
		t.Fatal(err)
	}
	if got := m.Active(); got.ConfidenceFloor != 0.98 || got.MaxScaling != 5.0 || got.TrailingSLBuffer != 0.002 {
		t.Errorf("Hero settings = %+v", got)
	}
	if seen != models.ModeHero {
		t.Errorf("OnChange saw %q, want Hero", seen)
	}

	err := m.SetMode("Insane")
	if !errors.Is(err, errors.ErrInvalidMode) {
		t.Fatalf("SetMode(Insane) error = %v, want ErrInvalidMode", err)
	}
	if m.Active().Name != models.ModeHero {
		t.Errorf("invalid switch changed the active mode to %s", m.Active().Name)
	}

	if _, err := NewModeManager("easy"); err == nil {
		t.Error("mode names are case sensitive")
	}
}

func TestCompoundingEngine(t *testing.T) {
	modes := mustModes(t, models.ModeEasy)
	c := NewCompoundingEngine(0.02, 0.10, modes)

	// (1 + 0.3) * (1 + 0.02*5) = 1.43
	if got := c.Adjust(3, 0, 0.98); math.Abs(got-1.43) > eps {
		t.Errorf("Easy Adjust = %v, want 1.43", got)
	}
	if got := c.PositionSize(10000); got != 286 {
		t.Errorf("PositionSize = %v, want 286", got)
	}

	if got := c.Adjust(50, 0, 1.0); got != 2.5 {
		t.Errorf("Easy cap = %v, want 2.5", got)
	}

	if got := c.Adjust(5, 0.11, 0.99); got != 1.0 {
		t.Errorf("drawdown reset = %v, want 1.0", got)
	}
	if got := c.Adjust(0, 0, 0.99); got != 1.0 {
		t.Errorf("no streak = %v, want 1.0", got)
	}

	if err := modes.SetMode(models.ModeHard); err != nil {
		t.Fatal(err)
	}
	// (1 + 0.6) * (1 + 0) = 1.6
	if got := c.Adjust(2, 0, 0.95); math.Abs(got-1.6) > eps {
		t.Errorf("Hard Adjust = %v, want 1.6", got)
	}
	if got := c.Adjust(100, 0, 1.0); got != 5.0 {
		t.Errorf("Hard cap = %v, want 5.0", got)
	}

	c.Reset()
	if c.Factor() != 1.0 {
		t.Errorf("Factor after Reset = %v", c.Factor())
	}
}

func TestReentryManager(t *testing.T) {
	r := NewReentryManager(0.95, 1.1)

	if r.ShouldReenter("BTCUSDT", 1, 100) {
		t.Fatal("unknown symbol must not reenter")
	}

	r.RecordExit("BTCUSDT", models.ExitTakeProfit, 0.96, 5.0)

	tests := []struct {
		conf, gain float64
		want       bool
	}{
		{0.97, 6.0, true},
		{0.91, 6.0, false}, // 0.91 < 0.912
		{0.97, 5.5, false}, // not strictly above 5.5
		{0.97, 5.4, false},
	}
	for _, tt := range tests {
		if got := r.ShouldReenter("BTCUSDT", tt.conf, tt.gain); got != tt.want {
			t.Errorf("ShouldReenter(%v, %v) = %v, want %v", tt.conf, tt.gain, got, tt.want)
		}
	}

	r.ClearSymbol("BTCUSDT")
	if r.Known("BTCUSDT") {
		t.Error("ClearSymbol did not forget the symbol")
	}
}

func TestSymbolPriorityRanking(t *testing.T) {
	p := NewSymbolPriorityTracker(100)

	for _, g := range []float64{2, 2, 2} {
		p.Update("ETHUSDT", g, 1.0, 3)
	}
	for _, g := range []float64{5, 1, 3} {
		p.Update("SOLUSDT", g, 1.0, 0)
	}
	p.Update("WIFUSDT", 50, 1.0, 1) // below min trades

	ranked := p.Ranked(3)
	if len(ranked) != 2 {
		t.Fatalf("Ranked() = %+v, want 2 symbols", ranked)
	}

	// ETH: 2*1 - 0 + 0.3 = 2.3; SOL: 3*1 - 0.5*2 + 0 = 2.0
	if ranked[0].Symbol != "ETHUSDT" || math.Abs(ranked[0].Score-2.3) > eps {
		t.Errorf("first = %+v, want ETHUSDT 2.3", ranked[0])
	}
	if ranked[1].Symbol != "SOLUSDT" || math.Abs(ranked[1].Score-2.0) > eps {
		t.Errorf("second = %+v, want SOLUSDT 2.0", ranked[1])
	}
}

func TestSymbolPriorityHistoryCap(t *testing.T) {
	p := NewSymbolPriorityTracker(5)
	for i := 0; i < 20; i++ {
		p.Update("BTCUSDT", float64(i), 0.9, i)
	}
	m, _ := p.Memory("BTCUSDT")
	if len(m.Gains) != 5 || m.Gains[0] != 15 || m.Streak != 19 {
		t.Errorf("memory = %+v, want last 5 gains and streak 19", m)
	}
}

func TestStrategyPrioritizer(t *testing.T) {
	tracker := NewSymbolPriorityTracker(100)
	s := NewStrategyPrioritizer(tracker, 3, 5, []string{"micro_cap_moonshot", "volume_spike_100x"})

	strategies := []string{"coinmarketcap", "micro_cap_moonshot", "volume_spike_100x", "original", "mid_low_cap"}

	got := s.Order(strategies)
	want := []string{"micro_cap_moonshot", "volume_spike_100x", "coinmarketcap", "original", "mid_low_cap"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Order() = %v, want %v", got, want)
		}
	}

	for i := 0; i < 3; i++ {
		tracker.Update("ETHUSDT", 3, 1.0, 3)
		tracker.Update("BTCUSDT", 2, 1.0, 3)
	}
	s.RecordSource("ETHUSDT", "mid_low_cap")
	s.RecordSource("BTCUSDT", "mid_low_cap")
	s.RecordSource("BTCUSDT", "original")

	got = s.Order(strategies)
	want = []string{"micro_cap_moonshot", "volume_spike_100x", "mid_low_cap", "original", "coinmarketcap"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Order() = %v, want %v", got, want)
		}
	}
}

func TestProperty_CompoundingWithinCaps(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("factor stays within [1, cap]", prop.ForAll(
		func(streak int, drawdown, conf float64, hard bool) bool {
			name := models.ModeEasy
			limit := 2.5
			if hard {
				name = models.ModeHard
				limit = 5.0
			}
			modes, _ := NewModeManager(name)
			c := NewCompoundingEngine(0.02, 0.10, modes)
			f := c.Adjust(streak, drawdown, conf)
			return f >= 1.0 && f <= limit
		},
		gen.IntRange(-5, 100),
		gen.Float64Range(0, 0.5),
		gen.Float64Range(0.5, 1.0),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
