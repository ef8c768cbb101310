package broker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/logging"
	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/resilience"
	"github.com/Steinwealth/UltimaBot/internal/security"
	"github.com/Steinwealth/UltimaBot/pkg/utils"
)

// Guarded wraps a Client with retry on transient failures and a circuit
// breaker. The breaker only counts failures the retry layer gave up on.
type Guarded struct {
	inner   Client
	retry   utils.RetryConfig
	orders  utils.RetryConfig
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewGuarded wraps c. Reads retry on rate-limit, connection and timeout
// errors. Order submissions retry on rate limits only: a timed out order
// may already be on the book.
func NewGuarded(c Client, retry utils.RetryConfig, breaker *resilience.CircuitBreaker, logger zerolog.Logger) *Guarded {
	return &Guarded{
		inner:   c,
		retry:   retry.RetryIf(errors.IsRetryable),
		orders:  retry.RetryIf(errors.IsRateLimited),
		breaker: breaker,
		logger:  logger.With().Str("broker", c.ID()).Logger(),
	}
}

// Unwrap returns the wrapped client.
func (g *Guarded) Unwrap() Client { return g.inner }

// Breaker returns the circuit breaker guarding the client.
func (g *Guarded) Breaker() *resilience.CircuitBreaker { return g.breaker }

// ID returns the wrapped broker id.
func (g *Guarded) ID() string { return g.inner.ID() }

func guard[T any](g *Guarded, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	return guardWith(g, g.retry, ctx, op, fn)
}

func guardWith[T any](g *Guarded, retry utils.RetryConfig, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	return resilience.ExecuteWithResult(g.breaker, ctx, func(ctx context.Context) (T, error) {
		attempt := 0
		return utils.RetryWithResult(ctx, retry, func() (T, error) {
			attempt++
			start := time.Now()
			v, err := fn(ctx)
			if err != nil {
				masked := errors.New(security.MaskSecrets(err.Error()))
				logging.LogAPICall(g.logger, g.inner.ID(), op, time.Since(start), masked)
				if retry.ShouldRetry(err) {
					g.logger.Warn().Err(masked).Str("op", op).Int("attempt", attempt).Msg("Broker call failed, retrying")
				}
			} else {
				logging.LogAPICall(g.logger, g.inner.ID(), op, time.Since(start), nil)
			}
			return v, err
		})
	})
}

// GetPrice returns the latest price for symbol.
func (g *Guarded) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return guard(g, ctx, "get_price", func(ctx context.Context) (float64, error) {
		return g.inner.GetPrice(ctx, symbol)
	})
}

// GetSymbols returns the broker's tradable symbols.
func (g *Guarded) GetSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	return guard(g, ctx, "get_symbols", g.inner.GetSymbols)
}

// OpenTrade submits an entry.
func (g *Guarded) OpenTrade(ctx context.Context, req OrderRequest) (string, error) {
	return guardWith(g, g.orders, ctx, "open_trade", func(ctx context.Context) (string, error) {
		return g.inner.OpenTrade(ctx, req)
	})
}

// CloseTrade submits an exit.
func (g *Guarded) CloseTrade(ctx context.Context, tradeID string, reason models.ExitReason) error {
	_, err := guardWith(g, g.orders, ctx, "close_trade", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.CloseTrade(ctx, tradeID, reason)
	})
	return err
}

// UpdateTrade pushes new exit levels.
func (g *Guarded) UpdateTrade(ctx context.Context, trade models.Trade) error {
	_, err := guard(g, ctx, "update_trade", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.UpdateTrade(ctx, trade)
	})
	return err
}

// GetAccountInfo returns a fresh account snapshot.
func (g *Guarded) GetAccountInfo(ctx context.Context) (models.AccountSnapshot, error) {
	return guard(g, ctx, "get_account", g.inner.GetAccountInfo)
}

// GetOpenTrades returns the broker's open positions.
func (g *Guarded) GetOpenTrades(ctx context.Context) ([]Position, error) {
	return guard(g, ctx, "get_open_trades", g.inner.GetOpenTrades)
}

// GetCandles forwards to the wrapped client when it serves candles.
func (g *Guarded) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	md, ok := g.inner.(MarketData)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "%s serves no candles", g.inner.ID())
	}
	return guard(g, ctx, "get_candles", func(ctx context.Context) ([]models.Candle, error) {
		return md.GetCandles(ctx, symbol, interval, limit)
	})
}
