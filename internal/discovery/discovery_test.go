package discovery

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"github.com/Steinwealth/UltimaBot/internal/confidence"
	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/policy"
)

type fakeLister struct {
	infos []models.SymbolInfo
	err   error
	calls int32
}

func (f *fakeLister) GetSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.infos, f.err
}

func lister(vols map[string]float64) *fakeLister {
	f := &fakeLister{}
	for s, v := range vols {
		f.infos = append(f.infos, models.SymbolInfo{Symbol: s, Volume24h: v})
	}
	return f
}

// passing returns a crypto snapshot that satisfies the Original strategy.
func passing() map[string]any {
	return map[string]any{
		KeyPrice:      10.0,
		KeyVolume24h:  2_000_000.0,
		KeyATR:        0.2,
		KeyEMAFast:    10.5,
		KeyEMASlow:    10.0,
		KeyConfidence: 0.97,
		KeyVolume:     600_000.0,
		KeyRSI:        60.0,
		KeyMACD:       0.1,
	}
}

func cryptoEngine(t *testing.T, cfg Config, symbols SymbolLister, features FeatureSource, listings ListingFeed, priority *policy.StrategyPrioritizer) *Engine {
	t.Helper()
	cfg.AssetClass = models.AssetCrypto
	if cfg.VolumeFloor == 0 {
		cfg.VolumeFloor = 1_000_000
	}
	e, err := NewEngine(cfg, symbols, features, listings, priority, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestTrendingQuotaOrderAndDedupe(t *testing.T) {
	symbols := lister(map[string]float64{
		"AUSDT": 5_000_000, "BUSDT": 4_000_000, "CUSDT": 3_000_000,
		"DUSDT": 2_000_000, "EUSDT": 500_000,
	})
	feed := NewStaticListingFeed(Lists{
		PumpFun: []string{"cusdt", "ausdt", "busdt"},
		GMGN:    []string{"busdt", "dusdt", "eusdt"},
	}, nil, symbols)

	e := cryptoEngine(t, Config{
		Strategies: []string{StrategyPumpFunTrending, StrategyGMGNTrending},
		Quotas:     map[string]int{StrategyPumpFunTrending: 2},
	}, symbols, nil, feed, nil)

	got, err := e.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []Candidate{
		{Symbol: "AUSDT", StrategyID: StrategyPumpFunTrending},
		{Symbol: "BUSDT", StrategyID: StrategyPumpFunTrending},
		{Symbol: "DUSDT", StrategyID: StrategyGMGNTrending},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidates = %+v, want %+v", got, want)
	}
}

func TestPrioritizerReordersStrategies(t *testing.T) {
	symbols := lister(map[string]float64{"AUSDT": 5_000_000, "BUSDT": 4_000_000, "DUSDT": 2_000_000})
	feed := NewStaticListingFeed(Lists{
		PumpFun: []string{"AUSDT", "BUSDT"},
		GMGN:    []string{"BUSDT", "DUSDT"},
	}, nil, symbols)
	prio := policy.NewStrategyPrioritizer(policy.NewSymbolPriorityTracker(10), 1, 5, []string{StrategyGMGNTrending})

	e := cryptoEngine(t, Config{
		Strategies: []string{StrategyPumpFunTrending, StrategyGMGNTrending},
	}, symbols, nil, feed, prio)

	got, err := e.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []Candidate{
		{Symbol: "BUSDT", StrategyID: StrategyGMGNTrending},
		{Symbol: "DUSDT", StrategyID: StrategyGMGNTrending},
		{Symbol: "AUSDT", StrategyID: StrategyPumpFunTrending},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidates = %+v, want %+v", got, want)
	}
}

func TestListingStrategyAppliesFloorAndTradability(t *testing.T) {
	symbols := lister(map[string]float64{"NEWUSDT": 3_000_000, "THINUSDT": 400_000, "HOTUSDT": 1_500_000})
	feed := NewStaticListingFeed(Lists{
		New:      []string{"NEWUSDT", "THINUSDT", "GHOSTUSDT"},
		Trending: []string{"HOTUSDT"},
	}, nil, symbols)

	e := cryptoEngine(t, Config{Strategies: []string{StrategyCoinMarketCap}}, symbols, nil, feed, nil)

	got, err := e.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []Candidate{
		{Symbol: "NEWUSDT", StrategyID: StrategyCoinMarketCap},
		{Symbol: "HOTUSDT", StrategyID: StrategyCoinMarketCap},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("candidates = %+v, want %+v", got, want)
	}
}

func TestBlacklistedSymbolsNeverSelected(t *testing.T) {
	symbols := lister(map[string]float64{"AUSDT": 5_000_000, "BADUSDT": 4_000_000})
	feed := NewStaticListingFeed(Lists{GMGN: []string{"AUSDT", "BADUSDT"}}, nil, symbols)

	e := cryptoEngine(t, Config{
		Strategies: []string{StrategyGMGNTrending},
		Blacklist:  []string{"badusdt"},
	}, symbols, nil, feed, nil)

	got, err := e.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "AUSDT" {
		t.Errorf("candidates = %+v, want only AUSDT", got)
	}
}

func TestPredicateStrategyReportsItemErrors(t *testing.T) {
	symbols := lister(map[string]float64{
		"GOODUSDT":    9_000_000,
		"STRUSDT":     8_000_000,
		"MISSUSDT":    7_000_000,
		"BADUSDT":     6_000_000,
		"LOWCONFUSDT": 5_000_000,
		"FETCHUSDT":   4_000_000,
	})
	features := FeatureFunc(func(ctx context.Context, symbol string) (map[string]any, error) {
		f := passing()
		switch symbol {
		case "STRUSDT":
			f[KeyRSI] = "61.5"
			f[KeyVolume] = "600000"
		case "MISSUSDT":
			delete(f, KeyRSI)
		case "BADUSDT":
			f[KeyMACD] = "abc"
		case "LOWCONFUSDT":
			f[KeyConfidence] = 0.90
		case "FETCHUSDT":
			return nil, fmt.Errorf("upstream down")
		}
		return f, nil
	})

	e := cryptoEngine(t, Config{Strategies: []string{StrategyOriginal}}, symbols, features, nil, nil)

	report, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []Candidate{
		{Symbol: "GOODUSDT", StrategyID: StrategyOriginal},
		{Symbol: "STRUSDT", StrategyID: StrategyOriginal},
	}
	if !reflect.DeepEqual(report.Candidates, want) {
		t.Errorf("candidates = %+v, want %+v", report.Candidates, want)
	}

	failed := make(map[string]error)
	for _, f := range report.Failures {
		if f.StrategyID != StrategyOriginal {
			t.Errorf("failure strategy = %q", f.StrategyID)
		}
		failed[f.Symbol] = f.Err
	}
	if len(failed) != 3 {
		t.Fatalf("failures = %+v, want 3", report.Failures)
	}
	if !errors.Is(failed["MISSUSDT"], errors.ErrInsufficientData) {
		t.Errorf("missing rsi error = %v", failed["MISSUSDT"])
	}
	var ve *errors.ValidationError
	if !errors.As(failed["BADUSDT"], &ve) || ve.Field != KeyMACD {
		t.Errorf("bad macd error = %v", failed["BADUSDT"])
	}
	if failed["FETCHUSDT"] == nil {
		t.Error("fetch failure not reported")
	}
}

func TestFeatureSourcePanicIsItemError(t *testing.T) {
	symbols := lister(map[string]float64{"AUSDT": 5_000_000, "BUSDT": 4_000_000})
	features := FeatureFunc(func(ctx context.Context, symbol string) (map[string]any, error) {
		if symbol == "AUSDT" {
			panic("decoder exploded")
		}
		return passing(), nil
	})

	e := cryptoEngine(t, Config{Strategies: []string{StrategyOriginal}}, symbols, features, nil, nil)

	report, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Candidates) != 1 || report.Candidates[0].Symbol != "BUSDT" {
		t.Errorf("candidates = %+v", report.Candidates)
	}
	if len(report.Failures) != 1 || report.Failures[0].Symbol != "AUSDT" {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestFeaturesFetchedOncePerScan(t *testing.T) {
	symbols := lister(map[string]float64{"AUSDT": 5_000_000})
	var calls int32
	features := FeatureFunc(func(ctx context.Context, symbol string) (map[string]any, error) {
		atomic.AddInt32(&calls, 1)
		return passing(), nil
	})

	e := cryptoEngine(t, Config{
		Strategies: []string{StrategyOriginal, StrategyVolumeSpike100x, StrategyMidLowCap, StrategyMicroCapMoonshot},
	}, symbols, features, nil, nil)

	if _, err := e.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if calls != 1 {
		t.Errorf("feature fetches = %d, want 1", calls)
	}
}

func TestUniverseCappedByVolume(t *testing.T) {
	infos := []models.SymbolInfo{
		{Symbol: "a", Volume24h: 2_000_000},
		{Symbol: "b", Volume24h: 9_000_000},
		{Symbol: "c", Volume24h: 5_000_000},
		{Symbol: "d", Volume24h: 100},
	}
	u := NewUniverse(infos, 1_000_000, 2, nil, nil, nil)

	if got := u.Symbols(); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("symbols = %v", got)
	}
	if u.Tradable("a") || !u.Tradable("b") {
		t.Error("tradability does not follow the cap")
	}
	if _, err := u.Features(context.Background(), "B"); !errors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("features without source = %v", err)
	}
}

func TestNewEngineRejectsUnknownStrategy(t *testing.T) {
	_, err := NewEngine(Config{AssetClass: models.AssetStock, Strategies: []string{"original"}},
		lister(nil), nil, nil, nil, nil, zerolog.Nop())
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestSymbolListFailureIsError(t *testing.T) {
	symbols := &fakeLister{err: errors.ErrConnectionFailed}
	e := cryptoEngine(t, Config{Strategies: []string{StrategyGMGNTrending}}, symbols, nil, nil, nil)

	if _, err := e.Discover(context.Background()); !errors.Is(err, errors.ErrConnectionFailed) {
		t.Errorf("err = %v", err)
	}
}

func TestStockScanSkippedWhenMarketClosed(t *testing.T) {
	symbols := lister(map[string]float64{"AAPL": 50_000_000})
	e, err := NewEngine(Config{
		AssetClass:      models.AssetStock,
		VolumeFloor:     2_000_000,
		Strategies:      []string{StrategyTopVolume},
		MarketHoursOnly: true,
	}, symbols, FeatureFunc(func(ctx context.Context, symbol string) (map[string]any, error) {
		return map[string]any{KeyVolume24h: 50_000_000, KeyRSI: 60, KeyMACD: 0.5}, nil
	}), nil, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// Saturday.
	e.now = func() time.Time { return time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC) }
	report, err := e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !report.Skipped || symbols.calls != 0 {
		t.Errorf("skipped = %v, lister calls = %d", report.Skipped, symbols.calls)
	}

	// Wednesday 11:00 New York.
	e.now = func() time.Time { return time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC) }
	report, err = e.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Skipped || len(report.Candidates) != 1 || report.Candidates[0].Symbol != "AAPL" {
		t.Errorf("report = %+v", report)
	}
}

func TestStockPredicates(t *testing.T) {
	const floor = 2_000_000
	tests := []struct {
		name string
		pred predicate
		raw  map[string]any
		want bool
	}{
		{"freshman", freshman, map[string]any{KeyVolume24h: 3e6, KeyMarketCap: 4e8, KeyRSI: 56, KeyMACD: 0.1, KeyEMA5: 11, KeyEMA20: 10}, true},
		{"freshman ema cross down", freshman, map[string]any{KeyVolume24h: 3e6, KeyMarketCap: 4e8, KeyRSI: 56, KeyMACD: 0.1, KeyEMA5: 9, KeyEMA20: 10}, false},
		{"freshman too big", freshman, map[string]any{KeyVolume24h: 3e6, KeyMarketCap: 6e8, KeyRSI: 56, KeyMACD: 0.1}, false},
		{"top volume", topVolume, map[string]any{KeyVolume24h: 12e6, KeyRSI: 51, KeyMACD: 0.1}, true},
		{"top volume thin", topVolume, map[string]any{KeyVolume24h: 9e6, KeyRSI: 51, KeyMACD: 0.1}, false},
		{"large cap", largeCap, map[string]any{KeyVolume24h: 3e6, KeyMarketCap: 2e10, KeyRSI: 51, KeyMACD: 0.1, KeyATR: 2}, true},
		{"large cap missing atr", largeCap, map[string]any{KeyVolume24h: 3e6, KeyMarketCap: 2e10, KeyRSI: 51, KeyMACD: 0.1}, false},
		{"super leverage", superLeverage, map[string]any{KeyVolume24h: 3e6, KeyIsETF: "true", KeyLeverage: 3, KeyRSI: 51, KeyMACD: 0.1}, true},
		{"super leverage unlevered", superLeverage, map[string]any{KeyVolume24h: 3e6, KeyIsETF: true, KeyRSI: 51, KeyMACD: 0.1}, false},
		{"cameron", cameron, map[string]any{KeyVolume24h: 3e6, KeyPrice: 4.2, KeyRVol: 6, KeyFloat: 1e7}, true},
		{"cameron no rvol", cameron, map[string]any{KeyVolume24h: 3e6, KeyPrice: 4.2, KeyFloat: 1e7}, false},
		{"cameron pricey", cameron, map[string]any{KeyVolume24h: 3e6, KeyPrice: 12, KeyRVol: 6}, false},
		{"below floor", topVolume, map[string]any{KeyVolume24h: 1e6, KeyRSI: 51, KeyMACD: 0.1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDecoder(tt.raw)
			got := stockBased(tt.pred)(d, floor)
			if d.err != nil {
				t.Fatalf("decode error: %v", d.err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCryptoPredicates(t *testing.T) {
	const floor = 1_000_000
	with := func(kv ...any) map[string]any {
		f := passing()
		for i := 0; i < len(kv); i += 2 {
			f[kv[i].(string)] = kv[i+1]
		}
		return f
	}
	tests := []struct {
		name string
		pred predicate
		raw  map[string]any
		want bool
	}{
		{"original", original, passing(), true},
		{"original volatile", original, with(KeyATR, 0.6), false},
		{"original ema down", original, with(KeyEMAFast, 9.0), false},
		{"original zero price skips atr check", original, with(KeyPrice, 0.0, KeyATR, 5.0), true},
		{"volume spike", volumeSpike, with(KeyVolumeSpike5m, 600_000, KeyRecentSpikeCandles, 1, KeyVelocity, 0.04), true},
		{"volume spike stale", volumeSpike, with(KeyVolumeSpike5m, 600_000, KeyRecentSpikeCandles, 3, KeyVelocity, 0.04), false},
		{"mid low cap", midLowCap, with(KeyMarketCap, 1_200_000, KeyVolume, 350_000), true},
		{"mid low cap no mcap", midLowCap, with(KeyVolume, 350_000), false},
		{"micro cap", microCapMoonshot, with(KeyMarketCap, 900_000, KeyVolumeSpike5m, 300_000, KeyVelocity, 0.06), true},
		{"micro cap slow", microCapMoonshot, with(KeyMarketCap, 900_000, KeyVolumeSpike5m, 300_000, KeyVelocity, 0.01), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDecoder(tt.raw)
			got := cryptoBased(tt.pred)(d, floor)
			if d.err != nil {
				t.Fatalf("decode error: %v", d.err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStaticListingFeedLookup(t *testing.T) {
	symbols := lister(map[string]float64{"BTCUSDT": 5_000_000})
	feed := NewStaticListingFeed(Lists{}, map[string]Meta{"pepeusdt": {MarketCap: 800_000}}, symbols)

	l, ok, err := feed.Lookup(context.Background(), "btcusdt")
	if err != nil || !ok || l.Volume24h != 5_000_000 {
		t.Errorf("lookup BTCUSDT = %+v %v %v", l, ok, err)
	}
	l, ok, _ = feed.Lookup(context.Background(), "PEPEUSDT")
	if !ok || l.MarketCap != 800_000 || l.Volume24h != 0 {
		t.Errorf("lookup PEPEUSDT = %+v %v", l, ok)
	}
	if _, ok, _ := feed.Lookup(context.Background(), "NOPE"); ok {
		t.Error("unknown symbol found")
	}
	if symbols.calls != 1 {
		t.Errorf("lister calls = %d, want 1 (cached)", symbols.calls)
	}
}

type fakeCandles struct {
	n int
}

func (f fakeCandles) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	out := make([]models.Candle, f.n)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := 100 + float64(i)*0.5
		out[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      c - 0.25,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return out, nil
}

func TestCandleFeatureSource(t *testing.T) {
	reg := confidence.NewRegistry()
	reg.Register("fixed", models.AssetCrypto, confidence.ModelFunc(func(confidence.Features) float64 { return 0.97 }))
	feed := NewStaticListingFeed(Lists{}, map[string]Meta{"BTCUSDT": {MarketCap: 1e9}},
		lister(map[string]float64{"BTCUSDT": 5_000_000}))

	src := NewCandleFeatureSource(fakeCandles{n: 60}, feed, reg, "fixed", "5m", 60)
	raw, err := src.Features(context.Background(), "btcusdt")
	if err != nil {
		t.Fatalf("Features: %v", err)
	}

	d := newDecoder(raw)
	if got := d.float(KeyPrice); got != 129.5 {
		t.Errorf("price = %v, want 129.5", got)
	}
	if got := d.float(KeyVolume); got != 129_500 {
		t.Errorf("volume = %v, want 129500", got)
	}
	if d.float(KeyRSI) <= 55 || d.float(KeyMACD) <= 0 {
		t.Errorf("rising series: rsi = %v macd = %v", raw[KeyRSI], raw[KeyMACD])
	}
	if d.float(KeyEMAFast) <= d.float(KeyEMASlow) {
		t.Errorf("ema fast %v <= slow %v", raw[KeyEMAFast], raw[KeyEMASlow])
	}
	if d.float(KeyATR) <= 0 || d.float(KeyVelocity) <= 0 {
		t.Errorf("atr = %v velocity = %v", raw[KeyATR], raw[KeyVelocity])
	}
	if d.float(KeyConfidence) != 0.97 {
		t.Errorf("confidence = %v", raw[KeyConfidence])
	}
	if d.float(KeyVolume24h) != 5_000_000 || d.float(KeyMarketCap) != 1e9 {
		t.Errorf("listing data = %v %v", raw[KeyVolume24h], raw[KeyMarketCap])
	}
	if d.err != nil {
		t.Fatalf("decode: %v", d.err)
	}
}

func TestCandleFeatureSourceShortHistory(t *testing.T) {
	src := NewCandleFeatureSource(fakeCandles{n: 10}, nil, nil, "", "", 0)
	if _, err := src.Features(context.Background(), "BTCUSDT"); !errors.Is(err, errors.ErrInsufficientData) {
		t.Errorf("err = %v", err)
	}
}

func TestProperty_ScanDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("identical inputs yield identical capped candidates above the floor", prop.ForAll(
		func(vols []float64) bool {
			volumes := make(map[string]float64, len(vols))
			names := make([]string, len(vols))
			for i, v := range vols {
				names[i] = fmt.Sprintf("S%dUSDT", i)
				volumes[names[i]] = v
			}
			symbols := lister(volumes)
			feed := NewStaticListingFeed(Lists{PumpFun: names, GMGN: names}, nil, symbols)
			e, err := NewEngine(Config{
				AssetClass:  models.AssetCrypto,
				VolumeFloor: 1_000_000,
				Strategies:  []string{StrategyPumpFunTrending, StrategyGMGNTrending},
				Quotas:      map[string]int{StrategyPumpFunTrending: 3, StrategyGMGNTrending: 2},
			}, symbols, nil, feed, nil, nil, zerolog.Nop())
			if err != nil {
				return false
			}

			first, err1 := e.Discover(context.Background())
			second, err2 := e.Discover(context.Background())
			if err1 != nil || err2 != nil || !reflect.DeepEqual(first, second) {
				return false
			}
			if len(first) > 5 {
				return false
			}
			seen := make(map[string]bool)
			for _, c := range first {
				if volumes[c.Symbol] < 1_000_000 || seen[c.Symbol] {
					return false
				}
				seen[c.Symbol] = true
			}
			return true
		},
		gen.SliceOfN(10, gen.Float64Range(0, 5_000_000)),
	))

	properties.TestingRun(t)
}
