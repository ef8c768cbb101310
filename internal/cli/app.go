package cli

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Steinwealth/UltimaBot/internal/broker"
	"github.com/Steinwealth/UltimaBot/internal/confidence"
	"github.com/Steinwealth/UltimaBot/internal/config"
	"github.com/Steinwealth/UltimaBot/internal/discovery"
	"github.com/Steinwealth/UltimaBot/internal/errors"
	"github.com/Steinwealth/UltimaBot/internal/forecast"
	"github.com/Steinwealth/UltimaBot/internal/logging"
	"github.com/Steinwealth/UltimaBot/internal/metrics"
	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/internal/notify"
	"github.com/Steinwealth/UltimaBot/internal/policy"
	"github.com/Steinwealth/UltimaBot/internal/resilience"
	"github.com/Steinwealth/UltimaBot/internal/risk"
	"github.com/Steinwealth/UltimaBot/internal/store"
	"github.com/Steinwealth/UltimaBot/internal/tracking"
	"github.com/Steinwealth/UltimaBot/internal/trading"
	"github.com/Steinwealth/UltimaBot/pkg/utils"
)

// Public market data adapters are throttled well under the exchange limits.
const (
	publicRequestsPerSecond = 10
	publicBurst             = 20
)

// trendModelID is the id of the built-in confidence model.
const trendModelID = "trend"

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics

	Brokers  *broker.Registry
	Breakers *resilience.CircuitBreakerRegistry
	Models   *confidence.Registry
	Modes    *policy.ModeManager
}

// newApp builds the dependencies every command shares. Brokers, stores and
// subscribers are created by the commands that need them.
func newApp(cfg *config.Config, configDir string, logger zerolog.Logger) (*App, error) {
	modes, err := policy.NewModeManager(cfg.Engine.Mode)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		Logger:    logger,
		Metrics:   metrics.New(),
		Brokers:   broker.NewRegistry(),
		Models:    confidence.NewRegistry(),
		Modes:     modes,
	}

	modes.OnChange(func(s models.ModeSettings) {
		app.Metrics.SetMode(s.Name, policy.ModeNames())
		logger.Info().Str("mode", s.Name).Msg("Trading mode changed")
	})
	app.Metrics.SetMode(modes.Active().Name, policy.ModeNames())

	app.Models.Register(trendModelID, app.AssetClass(), confidence.NewTrendModel())

	bc := cfg.Broker.Breaker
	app.Breakers = resilience.NewCircuitBreakerRegistry(resilience.CircuitBreakerConfig{
		FailureThreshold: bc.FailureThreshold,
		SuccessThreshold: bc.SuccessThreshold,
		Timeout:          bc.Timeout,
		IsFailure:        errors.IsRetryable,
	})
	app.Breakers.OnStateChange(func(name string, from, to resilience.CircuitState) {
		app.Metrics.BreakerState(name, string(to))
		logger.Warn().Str("broker", name).Str("from", string(from)).Str("to", string(to)).Msg("Circuit breaker state changed")
	})

	return app, nil
}

// AssetClass returns the configured asset class.
func (a *App) AssetClass() models.AssetClass {
	if strings.EqualFold(a.Config.Engine.AssetClass, string(models.AssetStock)) {
		return models.AssetStock
	}
	return models.AssetCrypto
}

func (a *App) retryConfig() utils.RetryConfig {
	rc := a.Config.Broker.Retry
	return utils.RetryConfig{
		MaxAttempts:   rc.MaxAttempts,
		InitialDelay:  rc.InitialDelay,
		MaxDelay:      rc.MaxDelay,
		BackoffFactor: rc.BackoffFactor,
	}
}

func (a *App) guard(c broker.Client) *broker.Guarded {
	return broker.NewGuarded(c, a.retryConfig(), a.Breakers.Get(c.ID()), a.Logger)
}

// Broker returns the configured broker wrapped with retry and a circuit
// breaker, registering it on first use. The paper broker prices and charts
// through the public Binance endpoints under the paper broker's guard.
func (a *App) Broker() (*broker.Guarded, error) {
	cfg := a.Config.Broker
	if c, err := a.Brokers.Get(cfg.ID); err == nil {
		if g, ok := c.(*broker.Guarded); ok {
			return g, nil
		}
	}

	var client broker.Client
	switch strings.ToLower(cfg.Kind) {
	case "binance":
		client = broker.NewBinanceBroker(broker.BinanceConfig{
			ID:                cfg.ID,
			APIKey:            cfg.Binance.APIKey,
			APISecret:         cfg.Binance.APISecret,
			Testnet:           cfg.Binance.Testnet,
			QuoteAsset:        cfg.Binance.QuoteAsset,
			RequestsPerSecond: publicRequestsPerSecond,
			Burst:             publicBurst,
			Logger:            a.Logger,
		})
	case "paper":
		// unguarded: the paper broker itself is wrapped below
		public := broker.NewBinanceBroker(broker.BinanceConfig{
			ID:                "binance-public",
			Testnet:           cfg.Binance.Testnet,
			QuoteAsset:        cfg.Binance.QuoteAsset,
			RequestsPerSecond: publicRequestsPerSecond,
			Burst:             publicBurst,
			Logger:            a.Logger,
		})
		client = broker.NewPaperBroker(broker.PaperConfig{
			ID:            cfg.ID,
			Balance:       cfg.Paper.Balance,
			MarginEnabled: cfg.Paper.MarginEnabled,
			MarginBalance: cfg.Paper.MarginBalance,
			Prices:        public,
			Candles:       public,
		})
	default:
		return nil, errors.NewValidationError("broker.kind", cfg.Kind, "must be paper or binance")
	}

	g := a.guard(client)
	a.Brokers.Register(g)
	return g, nil
}

// OpenStore opens the sqlite trade store.
func (a *App) OpenStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(a.Config.Storage.Path)
}

// ListingFeed builds the configured listing feed over symbols.
func (a *App) ListingFeed(symbols discovery.SymbolLister) *discovery.StaticListingFeed {
	dc := a.Config.Discovery
	meta := make(map[string]discovery.Meta, len(dc.Metadata))
	for sym, m := range dc.Metadata {
		meta[sym] = discovery.Meta{
			MarketCap: m.MarketCap,
			Float:     m.Float,
			IsETF:     m.IsETF,
			Leverage:  m.Leverage,
			RVol:      m.RVol,
		}
	}
	return discovery.NewStaticListingFeed(discovery.Lists{
		New:      dc.Listings.New,
		Trending: dc.Listings.Trending,
		PumpFun:  dc.Listings.PumpFun,
		GMGN:     dc.Listings.GMGN,
	}, meta, symbols)
}

// DiscoveryEngine builds the discovery engine for the configured asset class.
func (a *App) DiscoveryEngine(b *broker.Guarded, prio *policy.StrategyPrioritizer) (*discovery.Engine, error) {
	cfg := a.Config
	asset := a.AssetClass()

	floor, strategies := cfg.Discovery.CryptoVolumeFloor, cfg.Discovery.CryptoStrategies
	if asset == models.AssetStock {
		floor, strategies = cfg.Discovery.StockVolumeFloor, cfg.Discovery.StockStrategies
	}

	feed := a.ListingFeed(b)
	source := discovery.NewCandleFeatureSource(b, feed, a.Models, cfg.Broker.ModelID,
		cfg.Engine.CandleInterval, cfg.Engine.CandleLimit)

	return discovery.NewEngine(discovery.Config{
		AssetClass:      asset,
		VolumeFloor:     floor,
		Strategies:      strategies,
		Quotas:          cfg.Discovery.Quotas,
		Blacklist:       cfg.Discovery.Blacklist,
		MaxSymbols:      cfg.Discovery.MaxSymbols,
		MarketHoursOnly: cfg.Discovery.MarketHoursOnly,
		Workers:         cfg.Engine.Workers,
	}, b, source, feed, prio, a.Metrics, a.Logger)
}

// Broadcaster builds the notification fan-out. Subscribers that cannot be
// set up are logged and skipped. The returned cleanup closes them.
func (a *App) Broadcaster(ctx context.Context) (*notify.Broadcaster, func()) {
	b := notify.NewBroadcaster(a.Logger)
	b.OnDrop(func(string) { a.Metrics.SubscriberDropped() })

	nc := a.Config.Notifications
	cleanup := func() {}
	if !nc.Enabled {
		return b, cleanup
	}

	if nc.Terminal.Enabled {
		b.Subscribe(notify.NewTerminalSubscriber(os.Stdout, nc.Terminal.Bell))
	}
	if nc.Webhook.Enabled {
		b.Subscribe(notify.NewWebhookSubscriber(nc.Webhook.URL, nc.Webhook.Timeout))
	}
	if nc.Redis.Enabled {
		r, err := notify.NewRedisSubscriber(ctx, notify.RedisOptions{
			Addr:     nc.Redis.Addr,
			Password: nc.Redis.Password,
			DB:       nc.Redis.DB,
			Channel:  nc.Redis.Channel,
		})
		if err != nil {
			a.Logger.Warn().Err(err).Str("addr", nc.Redis.Addr).Msg("Redis notifications unavailable")
		} else {
			b.Subscribe(r)
			cleanup = func() { _ = r.Close() }
		}
	}
	return b, cleanup
}

func (a *App) riskConfig() risk.Config {
	rc := a.Config.Risk
	return risk.Config{
		AllocationPercent:    rc.AllocationPercent,
		MarginFloorBuffer:    rc.MarginFloorBuffer,
		MaxTradeRisk:         rc.MaxTradeRisk,
		MaxAccountRisk:       rc.MaxAccountRisk,
		ConfidenceBuffer:     rc.ConfidenceBuffer,
		MaxATRPercent:        rc.MaxATRPercent,
		BaseAllocation:       rc.BaseAllocation,
		ConfidenceFloor:      a.Config.Engine.ConfidenceFloor,
		StreakBoostThreshold: rc.StreakBoostThreshold,
		StreakBoost:          rc.StreakBoost,
	}
}

func (a *App) autoCloseConfig() trading.AutoCloseConfig {
	ac := a.Config.AutoClose
	return trading.AutoCloseConfig{
		ConfidenceFloor:   ac.ConfidenceFloor,
		ConfidenceDrop:    ac.ConfidenceDrop,
		HeroTimeout:       ac.HeroTimeout,
		TrailBuffer:       ac.TrailBuffer,
		MomentumThreshold: ac.MomentumThreshold,
		TrailATRMultiple:  ac.TrailATRMultiple,
		DefaultATR:        ac.DefaultATR,
	}
}

// Engine is the wired trading engine for one broker.
type Engine struct {
	Broker    *broker.Guarded
	Book      *trading.OpenTrades
	Executor  *trading.Executor
	Closer    *trading.AutoCloser
	Monitor   *trading.Monitor
	Discovery *discovery.Engine
	Scheduler *trading.Scheduler
	Store     *store.SQLiteStore // nil when persistence is disabled
	Tracker   *tracking.TradeLogger
	Notifier  *notify.Broadcaster

	close []func()
}

// Close releases the engine's store and subscribers.
func (e *Engine) Close() {
	for i := len(e.close) - 1; i >= 0; i-- {
		e.close[i]()
	}
}

// NewEngine wires every component of the trading engine. A store that
// cannot be opened only disables persistence.
func (a *App) NewEngine(ctx context.Context) (*Engine, error) {
	cfg := a.Config
	b, err := a.Broker()
	if err != nil {
		return nil, err
	}

	e := &Engine{Broker: b, Book: trading.NewOpenTrades()}

	var ts store.TradeStore
	if s, err := a.OpenStore(); err != nil {
		a.Logger.Warn().Err(err).Str("path", cfg.Storage.Path).Msg("Trade store unavailable, persistence disabled")
	} else {
		ts = s
		e.Store = s
		e.close = append(e.close, func() { _ = s.Close() })
	}
	e.Tracker = tracking.NewTradeLogger(ts, a.Logger)

	notifier, cleanup := a.Broadcaster(ctx)
	e.Notifier = notifier
	e.close = append(e.close, cleanup)

	pc := cfg.Policy
	tracker := policy.NewSymbolPriorityTracker(pc.HistoryCap)
	prio := policy.NewStrategyPrioritizer(tracker, pc.MinTrades, pc.TopSymbols, pc.MoonshotStrategies)
	var reentry *policy.ReentryManager
	if pc.ReentryEnabled {
		reentry = policy.NewReentryManager(pc.ReentryConfidenceRatio, pc.ReentryGainRatio)
	}
	var compounding *policy.CompoundingEngine
	if cfg.Compounding.Enabled {
		compounding = policy.NewCompoundingEngine(cfg.Compounding.BasePercent, cfg.Compounding.DrawdownReset, a.Modes)
		a.Modes.OnChange(func(models.ModeSettings) { compounding.Reset() })
	}

	streaks := trading.NewStreakTracker()
	clock := trading.RealClock()

	e.Executor = trading.NewExecutor(trading.ExecutorOptions{
		Broker:      b,
		Book:        e.Book,
		Gate:        risk.NewGate(a.riskConfig()),
		Modes:       a.Modes,
		Streaks:     streaks,
		Compounding: compounding,
		Reentry:     reentry,
		Prioritizer: prio,
		Models:      a.Models,
		Tracker:     e.Tracker,
		Notifier:    notifier,
		Metrics:     a.Metrics,
		Logger:      a.Logger,
		Clock:       clock,
		TrailToMoon: cfg.Engine.TrailToMoon,
		Workers:     cfg.Engine.Workers,
	})

	e.Closer = trading.NewAutoCloser(trading.AutoCloseOptions{
		Broker:   b,
		Book:     e.Book,
		Config:   a.autoCloseConfig(),
		Streaks:  streaks,
		Models:   a.Models,
		Curve:    forecast.NewReactionCurve(),
		Tracker:  e.Tracker,
		Summary:  tracking.NewTradeSummary(cfg.Tracking.SummaryCap),
		Priority: tracker,
		Reentry:  reentry,
		Notifier: notifier,
		Metrics:  a.Metrics,
		Logger:   a.Logger,
		Clock:    clock,
	})

	e.Monitor = trading.NewMonitor(e.Closer, trading.MonitorOptions{
		Interval: cfg.Engine.PollInterval,
		Workers:  cfg.Engine.Workers,
		Clock:    clock,
		Metrics:  a.Metrics,
		Logger:   a.Logger,
	})

	e.Discovery, err = a.DiscoveryEngine(b, prio)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.Scheduler = trading.NewScheduler(trading.SchedulerOptions{
		Schedule:  cfg.Engine.ScanSchedule,
		Discovery: e.Discovery,
		Executor:  e.Executor,
		Broker:    b,
		Candles:   b,
		ModelID:   cfg.Broker.ModelID,
		Interval:  cfg.Engine.CandleInterval,
		Limit:     cfg.Engine.CandleLimit,
		Workers:   cfg.Engine.Workers,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	})

	return e, nil
}

// newLogger builds the zerolog logger from the logging section.
func newLogger(cfg *config.Config) zerolog.Logger {
	lc := cfg.Logging
	return logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      lc.Level,
		Console:    lc.Console,
		File:       lc.File,
		FilePath:   lc.FilePath,
		MaxSize:    lc.MaxSize,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAge,
	})
}
