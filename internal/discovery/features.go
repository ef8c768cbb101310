package discovery

import (
	"context"

	"github.com/spf13/cast"

	"github.com/Steinwealth/UltimaBot/internal/errors"
)

// Feature snapshot keys.
const (
	KeyPrice              = "price"
	KeyVolume             = "volume"
	KeyVolume24h          = "volume_24h"
	KeyRSI                = "rsi"
	KeyMACD               = "macd"
	KeyEMAFast            = "ema_fast"
	KeyEMASlow            = "ema_slow"
	KeyEMA5               = "ema_5"
	KeyEMA20              = "ema_20"
	KeyATR                = "atr"
	KeyVelocity           = "velocity"
	KeyVolumeSpike5m      = "volume_spike_5m"
	KeyRecentSpikeCandles = "recent_spike_candles"
	KeyConfidence         = "confidence"
	KeyMarketCap          = "market_cap"
	KeyFloat              = "float"
	KeyIsETF              = "is_etf"
	KeyLeverage           = "leverage"
	KeyRVol               = "rvol"
)

// FeatureSource produces the raw feature snapshot of a symbol. Values may
// be any numeric or numeric-string type.
type FeatureSource interface {
	Features(ctx context.Context, symbol string) (map[string]any, error)
}

// FeatureFunc adapts a function to FeatureSource.
type FeatureFunc func(ctx context.Context, symbol string) (map[string]any, error)

// Features calls f.
func (f FeatureFunc) Features(ctx context.Context, symbol string) (map[string]any, error) {
	return f(ctx, symbol)
}

// decoder reads typed values out of a raw snapshot. The first failure is
// kept in err and later reads return zero values.
type decoder struct {
	raw map[string]any
	err error
}

func newDecoder(raw map[string]any) *decoder {
	return &decoder{raw: raw}
}

// float reads a required numeric field.
func (d *decoder) float(key string) float64 {
	if d.err != nil {
		return 0
	}
	v, ok := d.raw[key]
	if !ok || v == nil {
		d.err = errors.Wrapf(errors.ErrInsufficientData, "missing feature %q", key)
		return 0
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		d.err = errors.NewValidationError(key, v, "feature is not numeric")
		return 0
	}
	return f
}

// floatOr reads an optional numeric field. A present but malformed value is
// still an error.
func (d *decoder) floatOr(key string, def float64) float64 {
	if _, ok := d.raw[key]; !ok {
		return def
	}
	return d.float(key)
}

func (d *decoder) boolOr(key string, def bool) bool {
	if d.err != nil {
		return def
	}
	v, ok := d.raw[key]
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		d.err = errors.NewValidationError(key, v, "feature is not a boolean")
		return def
	}
	return b
}
