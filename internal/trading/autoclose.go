package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Steinwealth/UltimaBot/internal/broker"
	"github.com/Steinwealth/UltimaBot/internal/confidence"
	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/forecast"
	"github.com/Steinwealth/UltimaBot/internal/logging"
	"github.com/Steinwealth/UltimaBot/internal/metrics"
	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/notify"
	"github.com/Steinwealth/UltimaBot/internal/policy"
	"github.com/Steinwealth/UltimaBot/internal/tracking"
)

// AutoCloseConfig holds the exit thresholds.
type AutoCloseConfig struct {
	ConfidenceFloor   float64
	ConfidenceDrop    float64 // fractional drop from the entry confidence
	HeroTimeout       time.Duration
	TrailBuffer       float64 // fraction of the forecast TP that arms the trail
	MomentumThreshold float64
	TrailATRMultiple  float64
	DefaultATR        float64 // trail ATR when the trade has none
}

// DefaultAutoCloseConfig returns the default exit thresholds.
func DefaultAutoCloseConfig() AutoCloseConfig {
	return AutoCloseConfig{
		ConfidenceFloor:   0.93,
		ConfidenceDrop:    0.10,
		HeroTimeout:       60 * time.Minute,
		TrailBuffer:       0.95,
		MomentumThreshold: 0.02,
		TrailATRMultiple:  0.6,
		DefaultATR:        0.5,
	}
}

// Action describes what one evaluation did to a trade.
type Action struct {
	TradeID    string
	Price      float64
	Confidence float64
	StopMoved  bool
	NewStop    float64
	Closed     bool
	Reason     models.ExitReason
	Record     *models.CloseRecord
}

// AutoCloseOptions wires the auto-close engine. Broker and Book are
// required; the rest are optional.
type AutoCloseOptions struct {
	Broker   broker.Client
	Book     *OpenTrades
	Config   AutoCloseConfig
	Streaks  *StreakTracker
	Models   *confidence.Registry
	Curve    *forecast.ReactionCurve
	Tracker  *tracking.TradeLogger
	Summary  *tracking.TradeSummary
	Priority *policy.SymbolPriorityTracker
	Reentry  *policy.ReentryManager
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
	Clock    Clock
}

// AutoCloser evaluates open trades against their exit rules and owns the
// close path.
type AutoCloser struct {
	broker   broker.Client
	book     *OpenTrades
	cfg      AutoCloseConfig
	streaks  *StreakTracker
	models   *confidence.Registry
	curve    *forecast.ReactionCurve
	tracker  *tracking.TradeLogger
	summary  *tracking.TradeSummary
	priority *policy.SymbolPriorityTracker
	reentry  *policy.ReentryManager
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	clock    Clock
}

// NewAutoCloser creates an auto-close engine.
func NewAutoCloser(opts AutoCloseOptions) *AutoCloser {
	if opts.Config == (AutoCloseConfig{}) {
		opts.Config = DefaultAutoCloseConfig()
	}
	if opts.Streaks == nil {
		opts.Streaks = NewStreakTracker()
	}
	if opts.Curve == nil {
		opts.Curve = forecast.NewReactionCurve()
	}
	if opts.Summary == nil {
		opts.Summary = tracking.NewTradeSummary(tracking.DefaultSummaryCap)
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	return &AutoCloser{
		broker:   opts.Broker,
		book:     opts.Book,
		cfg:      opts.Config,
		streaks:  opts.Streaks,
		models:   opts.Models,
		curve:    opts.Curve,
		tracker:  opts.Tracker,
		summary:  opts.Summary,
		priority: opts.Priority,
		reentry:  opts.Reentry,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   logging.WithComponent(opts.Logger, "autoclose"),
		clock:    opts.Clock,
	}
}

// Summary returns the session's close records.
func (a *AutoCloser) Summary() *tracking.TradeSummary { return a.summary }

// Evaluate runs one tick of exit management for a trade. Evaluating a trade
// that is already closed does nothing.
func (a *AutoCloser) Evaluate(ctx context.Context, tradeID string) (Action, error) {
	act := Action{TradeID: tradeID}

	e, ok := a.book.entry(tradeID)
	if !ok {
		return act, errors.Wrapf(errors.ErrTradeNotFound, "trade %s", tradeID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.trade
	if t.Status == models.TradeClosed {
		return act, nil
	}

	price, err := a.broker.GetPrice(ctx, t.Symbol)
	if err != nil {
		return act, errors.NewTradeError(tradeID, t.Symbol, "get_price", err)
	}
	act.Price = price

	t.CurrentConfidence = a.refreshConfidence(t, price)
	act.Confidence = t.CurrentConfidence

	if reason, hit := tpSLHit(t, price); hit {
		return a.closeWith(ctx, e, price, reason, act)
	}

	if t.ForecastTP != nil {
		if stop, moved := a.trailStop(t, price); moved {
			t.StopLoss = stop
			act.StopMoved = true
			act.NewStop = stop
			a.metrics.StopAdjusted()
			if err := a.broker.UpdateTrade(ctx, t.Clone()); err != nil {
				a.logger.Warn().Err(err).Str("trade_id", tradeID).Float64("stop", stop).Msg("Failed to push trailing stop")
			}
		}
	}

	if a.confidenceExit(t, price) {
		return a.closeWith(ctx, e, price, models.ExitConfidence, act)
	}

	if a.heroTimeout(t, price) {
		return a.closeWith(ctx, e, price, models.ExitHeroModeTimeout, act)
	}

	t.PushPrice(price)
	return act, nil
}

func (a *AutoCloser) closeWith(ctx context.Context, e *entry, price float64, reason models.ExitReason, act Action) (Action, error) {
	rec, err := a.closeLocked(ctx, e, price, reason)
	if err != nil {
		return act, err
	}
	act.Closed = true
	act.Reason = reason
	act.Record = &rec
	return act, nil
}

// Close closes a trade on request. A zero price fetches the current price
// from the broker.
func (a *AutoCloser) Close(ctx context.Context, tradeID string, reason models.ExitReason, price float64) (models.CloseRecord, error) {
	e, ok := a.book.entry(tradeID)
	if !ok {
		return models.CloseRecord{}, errors.Wrapf(errors.ErrTradeNotFound, "trade %s", tradeID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.trade.Status == models.TradeClosed {
		return models.CloseRecord{}, errors.Wrapf(errors.ErrTradeClosed, "trade %s", tradeID)
	}
	if reason == "" {
		reason = models.ExitManual
	}
	if price <= 0 {
		p, err := a.broker.GetPrice(ctx, e.trade.Symbol)
		if err != nil {
			return models.CloseRecord{}, errors.NewTradeError(tradeID, e.trade.Symbol, "get_price", err)
		}
		price = p
	}
	return a.closeLocked(ctx, e, price, reason)
}

// closeLocked must be called with e.mu held. The status flip guarantees a
// trade is closed at most once; a failed broker close reopens it.
func (a *AutoCloser) closeLocked(ctx context.Context, e *entry, price float64, reason models.ExitReason) (models.CloseRecord, error) {
	t := e.trade
	if t.Status != models.TradeOpen {
		return models.CloseRecord{}, errors.Wrapf(errors.ErrTradeClosed, "trade %s", t.TradeID)
	}
	t.Status = models.TradeClosed

	if err := a.broker.CloseTrade(ctx, t.TradeID, reason); err != nil {
		t.Status = models.TradeOpen
		log := logging.WithTradeID(a.logger, t.TradeID)
		log.Error().Err(err).Str("symbol", t.Symbol).Str("reason", string(reason)).Msg("Broker close failed, trade stays open")
		return models.CloseRecord{}, errors.NewTradeError(t.TradeID, t.Symbol, "close", err)
	}

	now := a.clock.Now()
	t.ExitPrice = price
	t.ExitReason = reason
	t.ExitTime = now

	rec := a.summary.Record(t.Clone())

	streak := a.streaks.Record(t.BrokerID, rec.Win())
	a.metrics.SetWinStreak(t.BrokerID, streak)
	if a.notifier != nil {
		if ev, ok := notify.WinStreakEvent(t.BrokerID, streak); ok {
			a.notifier.Broadcast(ctx, ev)
		}
	}

	// best effort
	_ = a.tracker.LogClose(ctx, rec, t.StopLoss)

	if a.priority != nil {
		a.priority.Update(t.Symbol, rec.GainPct, t.CurrentConfidence, streak)
	}
	if a.reentry != nil {
		a.reentry.RecordExit(t.Symbol, reason, t.CurrentConfidence, rec.GainPct)
	}
	if a.models != nil && t.ModelID != "" {
		a.models.LogTrade(t.ModelID, rec.Win(), t.InitialConfidence)
	}

	a.metrics.TradeClosed(t.BrokerID, string(reason), rec.GainUSD)
	if a.notifier != nil {
		a.notifier.Broadcast(ctx, notify.TradeClosedEvent(rec))
	}

	a.book.Remove(t.TradeID)
	a.metrics.SetOpenTrades(a.book.Len())
	logging.LogTradeClosed(a.logger, rec)

	return rec, nil
}

// refreshConfidence scores the trade with its registered model, falling
// back to the reaction curve.
func (a *AutoCloser) refreshConfidence(t *models.Trade, price float64) float64 {
	move := movePct(t, price)
	var vol float64
	if price > 0 {
		vol = t.ATR / price * 100
	}
	trend := t.TrendStrength
	if trend < 1 {
		trend = 1
	}

	if a.models != nil && t.ModelID != "" {
		if m, err := a.models.Get(t.ModelID); err == nil {
			return m.Predict(confidence.Features{
				confidence.FeatureTrendStrength: trend,
				confidence.FeaturePriceMovePct:  move,
				confidence.FeatureVolatility:    vol,
				confidence.FeatureATRPercent:    vol,
			})
		}
	}
	return a.curve.Adjust(t.InitialConfidence, move, vol, trend)
}

func movePct(t *models.Trade, price float64) float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	move := (price - t.EntryPrice) / t.EntryPrice * 100
	if t.Side == models.SideSell {
		move = -move
	}
	return move
}

func tpSLHit(t *models.Trade, price float64) (models.ExitReason, bool) {
	if t.Side == models.SideSell {
		switch {
		case price <= t.TakeProfit:
			return models.ExitTakeProfit, true
		case price >= t.StopLoss:
			return models.ExitStopLoss, true
		}
		return "", false
	}
	switch {
	case price >= t.TakeProfit:
		return models.ExitTakeProfit, true
	case price <= t.StopLoss:
		return models.ExitStopLoss, true
	}
	return "", false
}

// trailStop returns the trailing stop for price once the trade is within
// the trail buffer of its forecast TP. The stop only moves in the trade's
// favour.
func (a *AutoCloser) trailStop(t *models.Trade, price float64) (float64, bool) {
	target := *t.ForecastTP
	armed := price >= target*a.cfg.TrailBuffer
	if t.Side == models.SideSell {
		armed = a.cfg.TrailBuffer > 0 && price <= target/a.cfg.TrailBuffer
	}
	if !armed {
		return 0, false
	}

	atr := t.ATR
	if atr <= 0 {
		atr = a.cfg.DefaultATR
	}
	dist := atr * a.cfg.TrailATRMultiple

	if t.Side == models.SideSell {
		stop := price + dist
		return stop, stop < t.StopLoss
	}
	stop := price - dist
	return stop, stop > t.StopLoss
}

func (a *AutoCloser) confidenceExit(t *models.Trade, price float64) bool {
	if t.InitialConfidence == 0 {
		return false
	}
	drop := (t.InitialConfidence - t.CurrentConfidence) / t.InitialConfidence
	weak := t.CurrentConfidence < a.cfg.ConfidenceFloor || drop >= a.cfg.ConfidenceDrop
	return weak && t.IsProfitable(price) && !a.hasMomentum(t, price)
}

// hasMomentum compares price with the oldest of the last three recorded
// prices.
func (a *AutoCloser) hasMomentum(t *models.Trade, price float64) bool {
	n := len(t.RecentPrices)
	if n < models.RecentPriceWindow {
		return false
	}
	ref := t.RecentPrices[n-models.RecentPriceWindow]
	if ref == 0 {
		return false
	}
	momentum := (price - ref) / ref
	if t.Side == models.SideSell {
		momentum = -momentum
	}
	return momentum > a.cfg.MomentumThreshold
}

func (a *AutoCloser) heroTimeout(t *models.Trade, price float64) bool {
	if t.Mode != models.ModeHero {
		return false
	}
	return a.clock.Now().Sub(t.EntryTime) >= a.cfg.HeroTimeout && t.IsProfitable(price)
}
