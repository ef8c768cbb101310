// Package tracking persists trade lifecycle events and aggregates closed
// trade results.
package tracking

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/store"
)

// TradeLogger writes open and close events to a TradeStore. A nil store
// turns every call into a no-op.
type TradeLogger struct {
	store  store.TradeStore
	logger zerolog.Logger
}

// NewTradeLogger creates a trade logger backed by s.
func NewTradeLogger(s store.TradeStore, logger zerolog.Logger) *TradeLogger {
	return &TradeLogger{
		store:  s,
		logger: logger.With().Str("component", "trade_logger").Logger(),
	}
}

// LogOpen persists a newly opened trade with the capital snapshot it was
// sized against.
func (l *TradeLogger) LogOpen(ctx context.Context, t models.Trade, snap models.AccountSnapshot) error {
	if l == nil || l.store == nil {
		return nil
	}
	rec := store.TradeRecord{
		TradeID:     t.TradeID,
		Symbol:      t.Symbol,
		BrokerID:    t.BrokerID,
		Side:        string(t.Side),
		Mode:        t.Mode,
		ModelID:     t.ModelID,
		StrategyID:  t.StrategyID,
		EntryPrice:  t.EntryPrice,
		Size:        t.Size,
		TakeProfit:  t.TakeProfit,
		StopLoss:    t.StopLoss,
		Confidence:  t.InitialConfidence,
		EntryTime:   t.EntryTime,
		Status:      string(models.TradeOpen),
		Balance:     snap.Balance,
		BuyingPower: snap.BuyingPower,
		MarginUsed:  snap.MarginUsed,
	}
	if err := l.store.InsertTrade(ctx, rec); err != nil {
		l.logger.Warn().Err(err).Str("trade_id", t.TradeID).Str("symbol", t.Symbol).Msg("Failed to persist trade open")
		return err
	}
	return nil
}

// LogClose persists the close of a trade. finalStop is the stop in force
// when the trade closed.
func (l *TradeLogger) LogClose(ctx context.Context, r models.CloseRecord, finalStop float64) error {
	if l == nil || l.store == nil {
		return nil
	}
	upd := store.TradeUpdate{
		Status:     string(models.TradeClosed),
		StopLoss:   finalStop,
		ExitPrice:  r.ExitPrice,
		ExitReason: string(r.Reason),
		ExitTime:   r.ClosedAt,
		GainPct:    r.GainPct,
		GainUSD:    r.GainUSD,
	}
	if err := l.store.UpdateTrade(ctx, r.TradeID, upd); err != nil {
		l.logger.Warn().Err(err).Str("trade_id", r.TradeID).Str("symbol", r.Symbol).Msg("Failed to persist trade close")
		return err
	}
	return nil
}

// History returns stored trades, newest first. An empty symbol returns
// every symbol.
func (l *TradeLogger) History(ctx context.Context, symbol string, limit int) ([]store.TradeRecord, error) {
	if l == nil || l.store == nil {
		return nil, nil
	}
	return l.store.GetTradeHistory(ctx, store.TradeFilter{Symbol: strings.ToUpper(symbol), Limit: limit})
}

// ClosedRecords rebuilds close records from stored closed trades.
func (l *TradeLogger) ClosedRecords(ctx context.Context, filter store.TradeFilter) ([]models.CloseRecord, error) {
	if l == nil || l.store == nil {
		return nil, nil
	}
	filter.Status = string(models.TradeClosed)
	rows, err := l.store.GetTradeHistory(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]models.CloseRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.CloseRecord{
			RecordID:   r.TradeID,
			TradeID:    r.TradeID,
			Symbol:     r.Symbol,
			BrokerID:   r.BrokerID,
			Side:       models.Side(r.Side),
			Mode:       r.Mode,
			ModelID:    r.ModelID,
			StrategyID: r.StrategyID,
			Confidence: r.Confidence,
			Size:       r.Size,
			EntryPrice: r.EntryPrice,
			ExitPrice:  r.ExitPrice,
			GainPct:    r.GainPct,
			GainUSD:    r.GainUSD,
			Reason:     models.ExitReason(r.ExitReason),
			OpenedAt:   r.EntryTime,
			ClosedAt:   r.ExitTime,
		})
	}
	return out, nil
}
