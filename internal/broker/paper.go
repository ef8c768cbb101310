package broker

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/models"
)

// PaperBroker simulates fills against live or static prices.
type PaperBroker struct {
	id string

	// Real source for market data
	prices  PriceSource
	candles MarketData

	// Simulated state
	cash          float64
	marginEnabled bool
	marginBalance float64
	marginUsed    float64
	positions     map[string]*Position

	// Price cache, also the fallback when the source fails
	priceCache map[string]float64

	now func() time.Time
	mu  sync.RWMutex
}

// PaperConfig holds configuration for the paper broker.
type PaperConfig struct {
	ID            string
	Balance       float64
	MarginEnabled bool
	MarginBalance float64
	Prices        PriceSource
	Candles       MarketData
}

// NewPaperBroker creates a new paper trading broker.
func NewPaperBroker(cfg PaperConfig) *PaperBroker {
	id := cfg.ID
	if id == "" {
		id = "paper"
	}
	balance := cfg.Balance
	if balance == 0 {
		balance = 10000
	}

	return &PaperBroker{
		id:            id,
		prices:        cfg.Prices,
		candles:       cfg.Candles,
		cash:          balance,
		marginEnabled: cfg.MarginEnabled,
		marginBalance: cfg.MarginBalance,
		positions:     make(map[string]*Position),
		priceCache:    make(map[string]float64),
		now:           time.Now,
	}
}

// ID returns the broker id.
func (p *PaperBroker) ID() string { return p.id }

// SetPrice pins the price of a symbol. Pinned prices are served until the
// price source reports a newer one.
func (p *PaperBroker) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.priceCache[strings.ToUpper(symbol)] = price
}

// GetPrice returns the latest price for symbol.
func (p *PaperBroker) GetPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)
	if p.prices != nil {
		price, err := p.prices.GetPrice(ctx, symbol)
		if err == nil && price > 0 {
			p.mu.Lock()
			p.priceCache[symbol] = price
			p.mu.Unlock()
			return price, nil
		}
		if cached, ok := p.cachedPrice(symbol); ok {
			return cached, nil
		}
		if err != nil {
			return 0, err
		}
	}
	if cached, ok := p.cachedPrice(symbol); ok {
		return cached, nil
	}
	return 0, errors.Wrapf(errors.ErrNoPrice, "paper: %s", symbol)
}

func (p *PaperBroker) cachedPrice(symbol string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.priceCache[symbol]
	return price, ok && price > 0
}

// GetCandles delegates to the configured market data source.
func (p *PaperBroker) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if p.candles == nil {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "paper: no candle source for %s", symbol)
	}
	return p.candles.GetCandles(ctx, symbol, interval, limit)
}

// GetSymbols returns the symbols the paper broker can price. When the price
// source can list symbols its listing is used.
func (p *PaperBroker) GetSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	if lister, ok := p.prices.(interface {
		GetSymbols(ctx context.Context) ([]models.SymbolInfo, error)
	}); ok {
		return lister.GetSymbols(ctx)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.SymbolInfo, 0, len(p.priceCache))
	for symbol, price := range p.priceCache {
		out = append(out, models.SymbolInfo{Symbol: symbol, LastPrice: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// OpenTrade simulates a market fill for req.Size of quote currency.
func (p *PaperBroker) OpenTrade(ctx context.Context, req OrderRequest) (string, error) {
	if req.Size <= 0 {
		return "", errors.NewBrokerError(p.id, "invalid_size", "order size must be positive", nil)
	}

	price, err := p.GetPrice(ctx, req.Symbol)
	if err != nil {
		if req.Price <= 0 {
			return "", err
		}
		price = req.Price
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	available := p.cash
	if p.marginEnabled {
		available += p.marginBalance - p.marginUsed
	}
	if req.Size > available {
		return "", errors.NewBrokerError(p.id, "insufficient_funds", "order size exceeds buying power", nil)
	}

	if req.Size <= p.cash {
		p.cash -= req.Size
	} else {
		p.marginUsed += req.Size - p.cash
		p.cash = 0
	}

	side := req.Side
	if side == "" {
		side = models.SideBuy
	}
	id := uuid.NewString()
	p.positions[id] = &Position{
		TradeID:    id,
		Symbol:     strings.ToUpper(req.Symbol),
		Side:       side,
		Quantity:   req.Size / price,
		EntryPrice: price,
		Size:       req.Size,
		TakeProfit: req.TakeProfit,
		StopLoss:   req.StopLoss,
		OpenedAt:   p.now(),
	}
	return id, nil
}

// CloseTrade simulates a market exit at the latest price.
func (p *PaperBroker) CloseTrade(ctx context.Context, tradeID string, reason models.ExitReason) error {
	p.mu.RLock()
	pos, ok := p.positions[tradeID]
	p.mu.RUnlock()
	if !ok {
		return errors.Wrapf(errors.ErrTradeNotFound, "paper: %s", tradeID)
	}

	price, err := p.GetPrice(ctx, pos.Symbol)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.positions[tradeID]; !ok {
		return errors.Wrapf(errors.ErrTradeNotFound, "paper: %s", tradeID)
	}

	proceeds := pos.Size + positionPnL(pos, price)
	repay := proceeds
	if repay > p.marginUsed {
		repay = p.marginUsed
	}
	if repay < 0 {
		repay = 0
	}
	p.marginUsed -= repay
	p.cash += proceeds - repay
	delete(p.positions, tradeID)
	return nil
}

// UpdateTrade records new exit levels for an open position.
func (p *PaperBroker) UpdateTrade(ctx context.Context, trade models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[trade.TradeID]
	if !ok {
		return errors.Wrapf(errors.ErrTradeNotFound, "paper: %s", trade.TradeID)
	}
	pos.TakeProfit = trade.TakeProfit
	pos.StopLoss = trade.StopLoss
	return nil
}

// GetAccountInfo returns the simulated account, marking positions to the
// last seen price.
func (p *PaperBroker) GetAccountInfo(ctx context.Context) (models.AccountSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	equity := p.cash - p.marginUsed
	for _, pos := range p.positions {
		mark := pos.EntryPrice
		if price, ok := p.priceCache[pos.Symbol]; ok && price > 0 {
			mark = price
		}
		equity += pos.Size + positionPnL(pos, mark)
	}

	snap := models.AccountSnapshot{
		BrokerID:      p.id,
		Balance:       equity,
		CashAvailable: p.cash,
		BuyingPower:   p.cash,
		MarginEnabled: p.marginEnabled,
	}
	if p.marginEnabled {
		snap.MarginBalance = p.marginBalance
		snap.MarginUsed = p.marginUsed
		if p.marginBalance > 0 {
			snap.MarginPercent = p.marginUsed / p.marginBalance * 100
		}
	}
	return snap, nil
}

// GetOpenTrades returns the open simulated positions ordered by open time.
func (p *PaperBroker) GetOpenTrades(ctx context.Context) ([]Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].TradeID < out[j].TradeID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out, nil
}

// Reset clears positions and restores the starting balance.
func (p *PaperBroker) Reset(balance float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash = balance
	p.marginUsed = 0
	p.positions = make(map[string]*Position)
}

func positionPnL(pos *Position, price float64) float64 {
	diff := price - pos.EntryPrice
	if pos.Side == models.SideSell {
		diff = -diff
	}
	return diff * pos.Quantity
}
