// Package trading opens trades behind the risk gate and manages them until
// they close.
package trading

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Steinwealth/UltimaBot/internal/broker"
	"github.com/Steinwealth/UltimaBot/internal/confidence"
	"github.com/Steinwealth/UltimaBot/internal/forecast"
	"github.com/Steinwealth/UltimaBot/internal/logging"
	"github.com/Steinwealth/UltimaBot/internal/metrics"
	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/notify"
	"github.com/Steinwealth/UltimaBot/internal/policy"
	"github.com/Steinwealth/UltimaBot/internal/risk"
	"github.com/Steinwealth/UltimaBot/internal/tracking"
)

// OutcomeCode is the result of one execution attempt.
type OutcomeCode string

const (
	OutcomeVolatilityFiltered OutcomeCode = "volatility_filtered"
	OutcomeConfidenceTooLow   OutcomeCode = "confidence_too_low"
	OutcomeMarginFloorBreach  OutcomeCode = "margin_floor_breach"
	OutcomeTradeRiskLimit     OutcomeCode = "trade_risk_limit"
	OutcomeAccountRiskLimit   OutcomeCode = "account_risk_limit"
	OutcomeBrokerError        OutcomeCode = "broker_error"
	OutcomeExecutionError     OutcomeCode = "execution_error"
	OutcomeTradeOpened        OutcomeCode = "trade_opened"
	OutcomeAlreadyOpen        OutcomeCode = "already_open"
	OutcomeReentryBlocked     OutcomeCode = "reentry_blocked"
)

// ExecuteRequest is one candidate handed to the executor.
type ExecuteRequest struct {
	Symbol     string
	Market     models.MarketData
	Account    models.AccountSnapshot
	Mode       string // empty uses the active mode
	StrategyID string

	// Forecast, when set, is used instead of forecasting Market. Otherwise
	// the account's confidence model, if registered, scores the forecast.
	Forecast *models.ForecastResult
}

// Outcome is the result of Execute. Rejections are outcome codes, never
// errors; Err is only set for broker and execution errors.
type Outcome struct {
	Symbol   string
	Code     OutcomeCode
	TradeID  string
	Forecast models.ForecastResult
	Decision models.RiskDecision
	Err      error
}

// Opened reports whether the attempt opened a trade.
func (o Outcome) Opened() bool { return o.Code == OutcomeTradeOpened }

// ExecutorOptions wires the executor's collaborators. Broker, Book, Gate and
// Modes are required.
type ExecutorOptions struct {
	Broker      broker.Client
	Book        *OpenTrades
	Gate        *risk.Gate
	Modes       *policy.ModeManager
	Streaks     *StreakTracker
	Compounding *policy.CompoundingEngine // nil disables compounding
	Reentry     *policy.ReentryManager    // nil disables the reentry check
	Prioritizer *policy.StrategyPrioritizer
	Models      *confidence.Registry // scores forecasts for the account's model
	Tracker     *tracking.TradeLogger
	Notifier    notify.Notifier
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	Clock       Clock
	TrailToMoon bool
	Workers     int
}

// Executor runs the entry pipeline for candidate symbols.
type Executor struct {
	broker      broker.Client
	book        *OpenTrades
	gate        *risk.Gate
	modes       *policy.ModeManager
	streaks     *StreakTracker
	compounding *policy.CompoundingEngine
	reentry     *policy.ReentryManager
	prioritizer *policy.StrategyPrioritizer
	models      *confidence.Registry
	tracker     *tracking.TradeLogger
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	clock       Clock
	trailToMoon bool
	workers     int

	mu     sync.Mutex
	recent map[string]float64 // last forecast confidence per symbol
	peak   map[string]float64 // peak balance per broker
}

// NewExecutor creates an executor.
func NewExecutor(opts ExecutorOptions) *Executor {
	if opts.Streaks == nil {
		opts.Streaks = NewStreakTracker()
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Executor{
		broker:      opts.Broker,
		book:        opts.Book,
		gate:        opts.Gate,
		modes:       opts.Modes,
		streaks:     opts.Streaks,
		compounding: opts.Compounding,
		reentry:     opts.Reentry,
		prioritizer: opts.Prioritizer,
		models:      opts.Models,
		tracker:     opts.Tracker,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      logging.WithComponent(opts.Logger, "executor"),
		clock:       opts.Clock,
		trailToMoon: opts.TrailToMoon,
		workers:     opts.Workers,
		recent:      make(map[string]float64),
		peak:        make(map[string]float64),
	}
}

// Execute runs the entry pipeline for one symbol. The first failing gate
// decides the outcome.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (out Outcome) {
	symbol := strings.ToUpper(req.Symbol)
	out = Outcome{Symbol: symbol}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("symbol", symbol).Interface("panic", r).Msg("Recovered panic during execution")
			out.Code = OutcomeExecutionError
			out.Err = fmt.Errorf("execution panicked: %v", r)
		}
		e.metrics.ExecutionOutcome(e.broker.ID(), string(out.Code))
		logging.LogOutcome(e.logger, symbol, string(out.Code), out.Forecast.Confidence)
	}()

	out.Code, out.Err = e.execute(ctx, symbol, req, &out)
	return out
}

func (e *Executor) execute(ctx context.Context, symbol string, req ExecuteRequest, out *Outcome) (OutcomeCode, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeExecutionError, err
	}

	brokerID := e.broker.ID()
	if e.book.HasOpen(brokerID, symbol) {
		return OutcomeAlreadyOpen, nil
	}

	mode := req.Mode
	if mode == "" {
		mode = e.modes.Active().Name
	}

	price := req.Market.Price
	var fc models.ForecastResult
	if req.Forecast != nil {
		fc = *req.Forecast
	} else {
		fc = forecast.NewModel(mode, e.trailToMoon).ForecastMarket(req.Market)
		if conf, ok := e.modelConfidence(req, fc); ok {
			fc.Confidence = conf
		}
	}
	out.Forecast = fc

	recent := e.swapRecentConfidence(symbol, fc.Confidence)
	streak := e.streaks.Get(brokerID)

	factor := 1.0
	if e.compounding != nil {
		factor = e.compounding.Adjust(streak, e.drawdown(brokerID, req.Account.Balance), fc.Confidence)
	}

	d := e.gate.Evaluate(risk.Request{
		Account:          req.Account,
		Forecast:         fc,
		Price:            price,
		RecentConfidence: recent,
		WinStreak:        streak,
		Factor:           factor,
		OpenExposure:     e.book.Exposure(brokerID),
	})
	out.Decision = d

	switch {
	case !d.VolatilityOK:
		return OutcomeVolatilityFiltered, nil
	case !d.ConfidenceOK:
		return OutcomeConfidenceTooLow, nil
	}

	if e.reentry != nil && e.reentry.Known(symbol) {
		var expected float64
		if price > 0 {
			expected = fc.TP / price * 100
		}
		if !e.reentry.ShouldReenter(symbol, fc.Confidence, expected) {
			return OutcomeReentryBlocked, nil
		}
	}

	switch {
	case !d.MarginFloorOK:
		return OutcomeMarginFloorBreach, nil
	case !d.TradeRiskOK:
		return OutcomeTradeRiskLimit, nil
	case !d.AccountRiskOK:
		return OutcomeAccountRiskLimit, nil
	}

	forecastTP := price + fc.TP
	trade := &models.Trade{
		Symbol:            symbol,
		BrokerID:          brokerID,
		Side:              models.SideBuy,
		EntryPrice:        price,
		Size:              d.PositionSize,
		TakeProfit:        price + fc.TP,
		StopLoss:          price - fc.SL,
		ForecastTP:        &forecastTP,
		InitialConfidence: fc.Confidence,
		CurrentConfidence: fc.Confidence,
		Mode:              mode,
		EntryTime:         e.clock.Now(),
		ATR:               fc.ATR,
		TrendStrength:     fc.TrendStrength,
		TrailingAnchor:    fc.TrailingAnchor,
		RecentPrices:      lastN(req.Market.Closes, models.RecentPriceWindow),
		ModelID:           req.Account.ModelID,
		StrategyID:        req.StrategyID,
		Status:            models.TradeOpen,
	}

	tradeID, err := e.broker.OpenTrade(ctx, broker.OrderRequest{
		Symbol:     symbol,
		Side:       trade.Side,
		Size:       trade.Size,
		Price:      price,
		TakeProfit: trade.TakeProfit,
		StopLoss:   trade.StopLoss,
		Confidence: fc.Confidence,
	})
	if err != nil {
		log := logging.WithSymbol(e.logger, symbol)
		log.Warn().Err(err).Msg("Broker rejected trade open")
		return OutcomeBrokerError, err
	}
	if tradeID == "" {
		return OutcomeBrokerError, nil
	}
	trade.TradeID = tradeID
	out.TradeID = tradeID

	if err := e.book.Add(trade); err != nil {
		return OutcomeExecutionError, err
	}
	snapshot := trade.Clone()

	if e.reentry != nil {
		e.reentry.ClearSymbol(symbol)
	}
	if e.prioritizer != nil && req.StrategyID != "" {
		e.prioritizer.RecordSource(symbol, req.StrategyID)
	}

	// best effort; the tracker logs its own failures
	_ = e.tracker.LogOpen(ctx, snapshot, req.Account)

	if e.notifier != nil {
		e.notifier.Broadcast(ctx, notify.TradeOpenedEvent(&snapshot))
	}
	e.metrics.SetOpenTrades(e.book.Len())
	logging.LogTradeOpened(e.logger, &snapshot)

	return OutcomeTradeOpened, nil
}

// modelConfidence scores fc with the account's confidence model. It
// reports false when no model is registered under the account's id.
func (e *Executor) modelConfidence(req ExecuteRequest, fc models.ForecastResult) (float64, bool) {
	if e.models == nil || req.Account.ModelID == "" {
		return 0, false
	}
	model, err := e.models.Get(req.Account.ModelID)
	if err != nil {
		e.logger.Debug().Err(err).Str("model", req.Account.ModelID).Msg("No confidence model, using trend confidence")
		return 0, false
	}
	return model.Predict(confidence.ForecastFeatures(req.Market, fc)), true
}

// swapRecentConfidence stores conf as the symbol's latest reading and
// returns the previous one.
func (e *Executor) swapRecentConfidence(symbol string, conf float64) *float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev, ok := e.recent[symbol]
	e.recent[symbol] = conf
	if !ok {
		return nil
	}
	return &prev
}

// drawdown returns the fractional drop of balance from the broker's peak.
func (e *Executor) drawdown(brokerID string, balance float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if balance > e.peak[brokerID] {
		e.peak[brokerID] = balance
	}
	peak := e.peak[brokerID]
	if peak <= 0 {
		return 0
	}
	return (peak - balance) / peak
}

// ExecuteBatch executes every request with at most Workers in flight and
// returns the outcomes in request order.
func (e *Executor) ExecuteBatch(ctx context.Context, reqs []ExecuteRequest) []Outcome {
	outcomes := make([]Outcome, len(reqs))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range reqs {
		i := i
		g.Go(func() error {
			outcomes[i] = e.Execute(ctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func lastN(values []float64, n int) []float64 {
	if len(values) > n {
		values = values[len(values)-n:]
	}
	return append([]float64(nil), values...)
}
