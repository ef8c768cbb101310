package discovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Steinwealth/UltimaBot/internal/models"
)

// Listing is the market reference data of one symbol.
type Listing struct {
	Symbol    string
	Volume24h float64
	MarketCap float64
	Float     float64
	IsETF     bool
	Leverage  float64
	RVol      float64
}

// ListingFeed serves new and trending listings and per-symbol reference
// data.
type ListingFeed interface {
	NewListings(ctx context.Context) ([]Listing, error)
	Trending(ctx context.Context) ([]Listing, error)
	PumpFunTrending(ctx context.Context) ([]string, error)
	GMGNTrending(ctx context.Context) ([]string, error)
	Lookup(ctx context.Context, symbol string) (Listing, bool, error)
}

// SymbolLister reports the tradable symbols of a broker.
type SymbolLister interface {
	GetSymbols(ctx context.Context) ([]models.SymbolInfo, error)
}

// Lists are the configured listing and trending symbol lists.
type Lists struct {
	New      []string
	Trending []string
	PumpFun  []string
	GMGN     []string
}

// Meta is reference data the brokers do not report.
type Meta struct {
	MarketCap float64
	Float     float64
	IsETF     bool
	Leverage  float64
	RVol      float64
}

// StaticListingFeed serves configured lists. 24h volumes come from the
// broker's symbol list, cached for ttl.
type StaticListingFeed struct {
	lists   Lists
	meta    map[string]Meta
	symbols SymbolLister
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	volumes map[string]float64
	fetched time.Time
}

// NewStaticListingFeed creates a feed. symbols may be nil, in which case
// every volume is 0.
func NewStaticListingFeed(lists Lists, meta map[string]Meta, symbols SymbolLister) *StaticListingFeed {
	norm := make(map[string]Meta, len(meta))
	for s, m := range meta {
		norm[strings.ToUpper(s)] = m
	}
	return &StaticListingFeed{
		lists:   Lists{New: upper(lists.New), Trending: upper(lists.Trending), PumpFun: upper(lists.PumpFun), GMGN: upper(lists.GMGN)},
		meta:    norm,
		symbols: symbols,
		ttl:     time.Minute,
		now:     time.Now,
	}
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return out
}

func (f *StaticListingFeed) volumeMap(ctx context.Context) (map[string]float64, error) {
	if f.symbols == nil {
		return nil, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.volumes != nil && f.now().Sub(f.fetched) < f.ttl {
		return f.volumes, nil
	}

	infos, err := f.symbols.GetSymbols(ctx)
	if err != nil {
		return nil, err
	}
	vols := make(map[string]float64, len(infos))
	for _, info := range infos {
		vols[strings.ToUpper(info.Symbol)] = info.Volume24h
	}
	f.volumes = vols
	f.fetched = f.now()
	return vols, nil
}

func (f *StaticListingFeed) listing(symbol string, vols map[string]float64) (Listing, bool) {
	m, hasMeta := f.meta[symbol]
	vol, hasVol := vols[symbol]
	return Listing{
		Symbol:    symbol,
		Volume24h: vol,
		MarketCap: m.MarketCap,
		Float:     m.Float,
		IsETF:     m.IsETF,
		Leverage:  m.Leverage,
		RVol:      m.RVol,
	}, hasMeta || hasVol
}

func (f *StaticListingFeed) resolve(ctx context.Context, symbols []string) ([]Listing, error) {
	vols, err := f.volumeMap(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(symbols))
	for _, s := range symbols {
		l, _ := f.listing(s, vols)
		out = append(out, l)
	}
	return out, nil
}

// NewListings returns the configured new listings.
func (f *StaticListingFeed) NewListings(ctx context.Context) ([]Listing, error) {
	return f.resolve(ctx, f.lists.New)
}

// Trending returns the configured trending listings.
func (f *StaticListingFeed) Trending(ctx context.Context) ([]Listing, error) {
	return f.resolve(ctx, f.lists.Trending)
}

// PumpFunTrending returns the configured PumpFun list.
func (f *StaticListingFeed) PumpFunTrending(ctx context.Context) ([]string, error) {
	return f.lists.PumpFun, nil
}

// GMGNTrending returns the configured GMGN list.
func (f *StaticListingFeed) GMGNTrending(ctx context.Context) ([]string, error) {
	return f.lists.GMGN, nil
}

// Lookup returns the reference data of symbol. It is found when the broker
// lists the symbol or metadata is configured for it.
func (f *StaticListingFeed) Lookup(ctx context.Context, symbol string) (Listing, bool, error) {
	vols, err := f.volumeMap(ctx)
	if err != nil {
		return Listing{}, false, err
	}
	l, ok := f.listing(strings.ToUpper(symbol), vols)
	return l, ok, nil
}
