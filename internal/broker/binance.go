package broker

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/rs/zerolog"

	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

// Binance API codes that signal request throttling.
const (
	codeTooManyRequests = -1003
	codeTooManyOrders   = -1015
)

// BinanceBroker trades spot markets through the Binance REST API. Exit
// levels are enforced by the engine, so positions are tracked locally.
type BinanceBroker struct {
	id         string
	client     *binance.Client
	quoteAsset string
	throttle   *Throttle
	logger     zerolog.Logger

	mu        sync.RWMutex
	positions map[string]*Position
	now       func() time.Time
}

// BinanceConfig holds configuration for the Binance broker.
type BinanceConfig struct {
	ID         string
	APIKey     string
	APISecret  string
	Testnet    bool
	QuoteAsset string
	// RequestsPerSecond caps outbound REST calls. Zero disables the cap.
	RequestsPerSecond float64
	Burst             int
	Logger            zerolog.Logger
}

// NewBinanceBroker creates a Binance spot broker. Empty credentials give a
// read-only client usable as a price and candle source.
func NewBinanceBroker(cfg BinanceConfig) *BinanceBroker {
	if cfg.Testnet {
		binance.UseTestnet = true
	}
	id := cfg.ID
	if id == "" {
		id = "binance"
	}
	quote := strings.ToUpper(cfg.QuoteAsset)
	if quote == "" {
		quote = "USDT"
	}
	return &BinanceBroker{
		id:         id,
		client:     binance.NewClient(cfg.APIKey, cfg.APISecret),
		quoteAsset: quote,
		throttle:   NewThrottle(cfg.RequestsPerSecond, cfg.Burst),
		logger:     cfg.Logger.With().Str("broker", id).Logger(),
		positions:  make(map[string]*Position),
		now:        time.Now,
	}
}

// ID returns the broker id.
func (b *BinanceBroker) ID() string { return b.id }

// GetPrice returns the last traded price for symbol.
func (b *BinanceBroker) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if err := b.throttle.Wait(ctx); err != nil {
		return 0, err
	}
	prices, err := b.client.NewListPricesService().Symbol(strings.ToUpper(symbol)).Do(ctx)
	if err != nil {
		return 0, b.mapError("get_price", err)
	}
	for _, p := range prices {
		if strings.EqualFold(p.Symbol, symbol) {
			return parseFloat(p.Price), nil
		}
	}
	return 0, errors.Wrapf(errors.ErrSymbolNotFound, "binance: %s", symbol)
}

// GetSymbols returns every symbol quoted in the configured quote asset with
// its 24h quote volume, highest volume first.
func (b *BinanceBroker) GetSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	if err := b.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	stats, err := b.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, b.mapError("get_symbols", err)
	}

	out := make([]models.SymbolInfo, 0, len(stats))
	for _, s := range stats {
		if !strings.HasSuffix(s.Symbol, b.quoteAsset) {
			continue
		}
		out = append(out, models.SymbolInfo{
			Symbol:    s.Symbol,
			Volume24h: parseFloat(s.QuoteVolume),
			LastPrice: parseFloat(s.LastPrice),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Volume24h > out[j].Volume24h })
	return out, nil
}

// GetCandles returns up to limit candles for symbol.
func (b *BinanceBroker) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if err := b.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	klines, err := b.client.NewKlinesService().
		Symbol(strings.ToUpper(symbol)).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, b.mapError("get_candles", err)
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, models.Candle{
			Timestamp: time.UnixMilli(k.OpenTime),
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
		})
	}
	return candles, nil
}

// OpenTrade places a market buy spending req.Size of the quote asset.
func (b *BinanceBroker) OpenTrade(ctx context.Context, req OrderRequest) (string, error) {
	if req.Side == models.SideSell {
		return "", errors.NewBrokerError(b.id, "unsupported_side", "spot shorting is not supported", nil)
	}

	if err := b.throttle.Wait(ctx); err != nil {
		return "", err
	}
	symbol := strings.ToUpper(req.Symbol)
	resp, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(strconv.FormatFloat(req.Size, 'f', 2, 64)).
		Do(ctx)
	if err != nil {
		return "", b.mapError("open_trade", err)
	}

	qty := parseFloat(resp.ExecutedQuantity)
	if resp.OrderID == 0 || qty <= 0 {
		return "", nil
	}
	entry := req.Price
	if quote := parseFloat(resp.CummulativeQuoteQuantity); quote > 0 {
		entry = quote / qty
	}

	id := strconv.FormatInt(resp.OrderID, 10)
	b.mu.Lock()
	b.positions[id] = &Position{
		TradeID:    id,
		Symbol:     symbol,
		Side:       models.SideBuy,
		Quantity:   qty,
		EntryPrice: entry,
		Size:       req.Size,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		OpenedAt:   b.now(),
	}
	b.mu.Unlock()

	b.logger.Info().
		Str("symbol", symbol).
		Str("order_id", id).
		Float64("quantity", qty).
		Msg("Market buy filled")
	return id, nil
}

// CloseTrade sells the executed quantity of an open position.
func (b *BinanceBroker) CloseTrade(ctx context.Context, tradeID string, reason models.ExitReason) error {
	b.mu.RLock()
	pos, ok := b.positions[tradeID]
	b.mu.RUnlock()
	if !ok {
		return errors.Wrapf(errors.ErrTradeNotFound, "binance: %s", tradeID)
	}
	if err := b.throttle.Wait(ctx); err != nil {
		return err
	}

	_, err := b.client.NewCreateOrderService().
		Symbol(pos.Symbol).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(pos.Quantity, 'f', -1, 64)).
		Do(ctx)
	if err != nil {
		return b.mapError("close_trade", err)
	}

	b.mu.Lock()
	delete(b.positions, tradeID)
	b.mu.Unlock()

	b.logger.Info().
		Str("symbol", pos.Symbol).
		Str("order_id", tradeID).
		Str("reason", string(reason)).
		Msg("Market sell filled")
	return nil
}

// UpdateTrade records new exit levels for a tracked position.
func (b *BinanceBroker) UpdateTrade(ctx context.Context, trade models.Trade) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.positions[trade.TradeID]
	if !ok {
		return errors.Wrapf(errors.ErrTradeNotFound, "binance: %s", trade.TradeID)
	}
	pos.TakeProfit = trade.TakeProfit
	pos.StopLoss = trade.StopLoss
	return nil
}

// GetAccountInfo returns the quote asset balances. Spot accounts carry no
// margin.
func (b *BinanceBroker) GetAccountInfo(ctx context.Context) (models.AccountSnapshot, error) {
	if err := b.throttle.Wait(ctx); err != nil {
		return models.AccountSnapshot{}, err
	}
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return models.AccountSnapshot{}, b.mapError("get_account", err)
	}

	var free, locked float64
	for _, bal := range acct.Balances {
		if strings.EqualFold(bal.Asset, b.quoteAsset) {
			free = parseFloat(bal.Free)
			locked = parseFloat(bal.Locked)
			break
		}
	}

	b.mu.RLock()
	invested := 0.0
	for _, pos := range b.positions {
		invested += pos.Size
	}
	b.mu.RUnlock()

	return models.AccountSnapshot{
		BrokerID:      b.id,
		Balance:       free + locked + invested,
		CashAvailable: free,
		BuyingPower:   free,
	}, nil
}

// GetOpenTrades returns the positions opened through this broker.
func (b *BinanceBroker) GetOpenTrades(ctx context.Context) ([]Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

// mapError classifies a go-binance error so retry and breaker logic can act on it.
func (b *BinanceBroker) mapError(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		code := strconv.FormatInt(apiErr.Code, 10)
		if apiErr.Code == codeTooManyRequests || apiErr.Code == codeTooManyOrders {
			return errors.NewRateLimitError(b.id, code, fmt.Sprintf("%s: %s", op, apiErr.Message))
		}
		return errors.NewBrokerError(b.id, code, op+": "+apiErr.Message, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errors.Wrapf(errors.ErrTimeout, "%s %s: %v", b.id, op, err)
		}
		return errors.Wrapf(errors.ErrConnectionFailed, "%s %s: %v", b.id, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(errors.ErrTimeout, "%s %s", b.id, op)
	}
	return errors.NewBrokerError(b.id, "unknown", op, err)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
