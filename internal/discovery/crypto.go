package discovery

import (
	"context"
)

// Crypto strategy ids.
const (
	StrategyCoinMarketCap    = "coinmarketcap"
	StrategyMicroCapMoonshot = "micro_cap_moonshot"
	StrategyVolumeSpike100x  = "volume_spike_100x"
	StrategyPumpFunTrending  = "pumpfun_trending"
	StrategyGMGNTrending     = "gmgn_trending"
	StrategyOriginal         = "original"
	StrategyMidLowCap        = "mid_low_cap"
)

const (
	maxCryptoATRPercent = 0.05
	minCryptoConfidence = 0.95
)

func cryptoStrategies() []Strategy {
	return []Strategy{
		&listingStrategy{},
		&trendingStrategy{id: StrategyPumpFunTrending, name: "PumpFun_Trending", list: ListingFeed.PumpFunTrending},
		&trendingStrategy{id: StrategyGMGNTrending, name: "GMGN_Trending", list: ListingFeed.GMGNTrending},
		&predicateStrategy{id: StrategyOriginal, name: "Original", pred: cryptoBased(original)},
		&predicateStrategy{id: StrategyVolumeSpike100x, name: "100X Volume Spike", pred: cryptoBased(volumeSpike)},
		&predicateStrategy{id: StrategyMidLowCap, name: "Mid-Low Cap", pred: cryptoBased(midLowCap)},
		&predicateStrategy{id: StrategyMicroCapMoonshot, name: "Micro Cap Moonshot", pred: cryptoBased(microCapMoonshot)},
	}
}

// cryptoBased guards p with the shared filters of the broker-based crypto
// strategies: listing volume, ATR%, EMA cross and model confidence.
func cryptoBased(p predicate) predicate {
	return func(d *decoder, floor float64) bool {
		if d.floatOr(KeyVolume24h, 0) < floor {
			return false
		}
		price := d.float(KeyPrice)
		var atrPct float64
		if price > 0 {
			atrPct = d.float(KeyATR) / price
		}
		if atrPct > maxCryptoATRPercent {
			return false
		}
		if d.floatOr(KeyEMAFast, 0) <= d.floatOr(KeyEMASlow, 0) {
			return false
		}
		if d.floatOr(KeyConfidence, 0) < minCryptoConfidence {
			return false
		}
		return p(d, floor)
	}
}

func original(d *decoder, _ float64) bool {
	return d.float(KeyVolume) > 500_000 &&
		d.float(KeyRSI) > 55 &&
		d.float(KeyMACD) > 0
}

func volumeSpike(d *decoder, _ float64) bool {
	return d.float(KeyVolumeSpike5m) >= 500_000 &&
		d.float(KeyRecentSpikeCandles) <= 2 &&
		d.float(KeyRSI) > 55 &&
		d.float(KeyMACD) > 0 &&
		d.float(KeyVelocity) > 0.03
}

func midLowCap(d *decoder, _ float64) bool {
	mcap := d.floatOr(KeyMarketCap, 0)
	vol := d.floatOr(KeyVolume24h, 0)
	var turnover float64
	if mcap > 0 {
		turnover = vol / mcap
	}
	return mcap <= 1_500_000 &&
		d.float(KeyVolume) > 300_000 &&
		d.float(KeyRSI) > 55 &&
		turnover > 0.5
}

func microCapMoonshot(d *decoder, _ float64) bool {
	return d.floatOr(KeyMarketCap, 0) <= 1_000_000 &&
		d.float(KeyVolumeSpike5m) >= 250_000 &&
		d.float(KeyATR) > 0.01 &&
		d.float(KeyVelocity) > 0.05
}

// listingStrategy picks liquid tradable symbols from the new and trending
// listings.
type listingStrategy struct{}

func (s *listingStrategy) ID() string          { return StrategyCoinMarketCap }
func (s *listingStrategy) Name() string        { return "CoinMarketCap" }
func (s *listingStrategy) NeedsFeatures() bool { return false }

func (s *listingStrategy) Discover(ctx context.Context, u *Universe) ([]string, []ItemError) {
	if u.Listings == nil {
		return nil, nil
	}

	var (
		out   []string
		fails []ItemError
	)
	for _, fetch := range []func(context.Context) ([]Listing, error){u.Listings.NewListings, u.Listings.Trending} {
		listings, err := fetch(ctx)
		if err != nil {
			fails = append(fails, ItemError{StrategyID: s.ID(), Err: err})
			continue
		}
		for _, l := range listings {
			if l.Volume24h >= u.Floor && u.Tradable(l.Symbol) {
				out = append(out, l.Symbol)
			}
		}
	}
	return out, fails
}

// trendingStrategy keeps the universe symbols present in a trending list.
type trendingStrategy struct {
	id   string
	name string
	list func(ListingFeed, context.Context) ([]string, error)
}

func (s *trendingStrategy) ID() string          { return s.id }
func (s *trendingStrategy) Name() string        { return s.name }
func (s *trendingStrategy) NeedsFeatures() bool { return false }

func (s *trendingStrategy) Discover(ctx context.Context, u *Universe) ([]string, []ItemError) {
	if u.Listings == nil {
		return nil, nil
	}
	trending, err := s.list(u.Listings, ctx)
	if err != nil {
		return nil, []ItemError{{StrategyID: s.id, Err: err}}
	}

	set := make(map[string]bool, len(trending))
	for _, t := range trending {
		set[t] = true
	}
	var out []string
	for _, symbol := range u.Symbols() {
		if set[symbol] {
			out = append(out, symbol)
		}
	}
	return out, nil
}
