package discovery

import (
	"context"
	"strings"

	"github.com/Steinwealth/UltimaBot/internal/analysis/indicators"
	"github.com/Steinwealth/UltimaBot/internal/broker"
	"github.com/Steinwealth/UltimaBot/internal/confidence"
	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

// Indicator periods of the candle feature source.
const (
	rsiPeriod       = 14
	atrPeriod       = 14
	emaFastPeriod   = 5
	emaSlowPeriod   = 15
	ema20Period     = 20
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
	velocityWindow  = 3
	spikeWindow     = 12
	spikeFactor     = 3.0
	minCandleWindow = macdSlow + macdSignal - 1
)

// CandleFeatureSource builds feature snapshots from broker candles, listing
// reference data and a confidence model.
type CandleFeatureSource struct {
	candles  broker.MarketData
	listings ListingFeed
	models   *confidence.Registry
	modelID  string
	interval string
	limit    int
}

// NewCandleFeatureSource creates a source. listings and registry may be nil;
// without a model the confidence feature is omitted.
func NewCandleFeatureSource(candles broker.MarketData, listings ListingFeed, registry *confidence.Registry, modelID, interval string, limit int) *CandleFeatureSource {
	if interval == "" {
		interval = "5m"
	}
	if limit < minCandleWindow+1 {
		limit = 100
	}
	return &CandleFeatureSource{
		candles:  candles,
		listings: listings,
		models:   registry,
		modelID:  modelID,
		interval: interval,
		limit:    limit,
	}
}

// Features implements FeatureSource.
func (s *CandleFeatureSource) Features(ctx context.Context, symbol string) (map[string]any, error) {
	symbol = strings.ToUpper(symbol)
	candles, err := s.candles.GetCandles(ctx, symbol, s.interval, s.limit)
	if err != nil {
		return nil, errors.NewDataError("candles", symbol, "failed to fetch candles", err)
	}
	if len(candles) < minCandleWindow {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "%s: %d candles", symbol, len(candles))
	}

	highs, lows, closes, vols := columns(candles)
	price := closes[len(closes)-1]

	rsi, err := indicators.RSI(closes, rsiPeriod)
	if err != nil {
		return nil, errors.Wrapf(err, "%s rsi", symbol)
	}
	macd, err := indicators.MACD(closes, macdFast, macdSlow, macdSignal)
	if err != nil {
		return nil, errors.Wrapf(err, "%s macd", symbol)
	}
	emaFast, err := indicators.EMA(closes, emaFastPeriod)
	if err != nil {
		return nil, errors.Wrapf(err, "%s ema", symbol)
	}
	emaSlow, err := indicators.EMA(closes, emaSlowPeriod)
	if err != nil {
		return nil, errors.Wrapf(err, "%s ema", symbol)
	}

	atr := indicators.ATR(highs, lows, closes, atrPeriod)
	velocity := indicators.Velocity(closes, velocityWindow)
	quoteVol := indicators.QuoteVolume(vols, closes)

	out := map[string]any{
		KeyPrice:              price,
		KeyVolume:             quoteVol,
		KeyRSI:                rsi,
		KeyMACD:               macd.MACD,
		KeyEMAFast:            emaFast,
		KeyEMASlow:            emaSlow,
		KeyEMA5:               emaFast,
		KeyATR:                atr,
		KeyVelocity:           velocity,
		KeyVolumeSpike5m:      quoteVol,
		KeyRecentSpikeCandles: indicators.SpikeCandles(vols, spikeWindow, spikeFactor),
	}
	if ema20, err := indicators.EMA(closes, ema20Period); err == nil {
		out[KeyEMA20] = ema20
	}

	if s.models != nil && s.modelID != "" {
		model, err := s.models.Get(s.modelID)
		if err != nil {
			return nil, err
		}
		out[KeyConfidence] = model.Predict(confidence.Features{
			confidence.FeatureTrendStrength: indicators.TrendStrength(closes),
			confidence.FeatureRSI:           rsi,
			confidence.FeatureMACD:          macd.MACD,
			confidence.FeatureATRPercent:    indicators.ATRPercent(atr, price),
			confidence.FeatureVelocity:      velocity,
		})
	}

	if s.listings != nil {
		l, ok, err := s.listings.Lookup(ctx, symbol)
		if err != nil {
			return nil, errors.NewDataError("listings", symbol, "failed to look up listing", err)
		}
		if ok {
			out[KeyVolume24h] = l.Volume24h
			if l.MarketCap > 0 {
				out[KeyMarketCap] = l.MarketCap
			}
			if l.Float > 0 {
				out[KeyFloat] = l.Float
			}
			if l.Leverage > 0 {
				out[KeyLeverage] = l.Leverage
			}
			if l.RVol > 0 {
				out[KeyRVol] = l.RVol
			}
			out[KeyIsETF] = l.IsETF
		}
	}

	return out, nil
}

func columns(candles []models.Candle) (highs, lows, closes, vols []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closes = make([]float64, len(candles))
	vols = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
		vols[i] = c.Volume
	}
	return highs, lows, closes, vols
}
