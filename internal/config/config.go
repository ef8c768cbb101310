// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Engine        EngineConfig       `mapstructure:"engine"`
	Risk          RiskConfig         `mapstructure:"risk"`
	AutoClose     AutoCloseConfig    `mapstructure:"autoclose"`
	Discovery     DiscoveryConfig    `mapstructure:"discovery"`
	Compounding   CompoundingConfig  `mapstructure:"compounding"`
	Policy        PolicyConfig       `mapstructure:"policy"`
	Broker        BrokerConfig       `mapstructure:"broker"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Tracking      TrackingConfig     `mapstructure:"tracking"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// EngineConfig holds top-level engine settings.
type EngineConfig struct {
	Mode            string        `mapstructure:"mode"`        // Easy, Hard, Hero
	AssetClass      string        `mapstructure:"asset_class"` // crypto, stock
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ScanSchedule    string        `mapstructure:"scan_schedule"` // cron spec
	Workers         int           `mapstructure:"workers"`
	ConfidenceFloor float64       `mapstructure:"confidence_floor"`
	TrailToMoon     bool          `mapstructure:"trail_to_moon"`
	CandleInterval  string        `mapstructure:"candle_interval"`
	CandleLimit     int           `mapstructure:"candle_limit"`
}

// RiskConfig holds risk gate thresholds.
type RiskConfig struct {
	AllocationPercent    float64 `mapstructure:"allocation_percent"`
	MarginFloorBuffer    float64 `mapstructure:"margin_floor_buffer"`
	MaxTradeRisk         float64 `mapstructure:"max_trade_risk"`
	MaxAccountRisk       float64 `mapstructure:"max_account_risk"`
	ConfidenceBuffer     float64 `mapstructure:"confidence_buffer"`
	MaxATRPercent        float64 `mapstructure:"max_atr_percent"`
	BaseAllocation       float64 `mapstructure:"base_allocation"`
	StreakBoostThreshold int     `mapstructure:"streak_boost_threshold"`
	StreakBoost          float64 `mapstructure:"streak_boost"`
}

// AutoCloseConfig holds exit management thresholds.
type AutoCloseConfig struct {
	ConfidenceFloor   float64       `mapstructure:"confidence_floor"`
	ConfidenceDrop    float64       `mapstructure:"confidence_drop"`
	HeroTimeout       time.Duration `mapstructure:"hero_timeout"`
	TrailBuffer       float64       `mapstructure:"trail_buffer"`
	MomentumThreshold float64       `mapstructure:"momentum_threshold"`
	TrailATRMultiple  float64       `mapstructure:"trail_atr_multiple"`
	DefaultATR        float64       `mapstructure:"default_atr"`
}

// DiscoveryConfig holds candidate discovery settings.
type DiscoveryConfig struct {
	CryptoVolumeFloor float64               `mapstructure:"crypto_volume_floor"`
	StockVolumeFloor  float64               `mapstructure:"stock_volume_floor"`
	CryptoStrategies  []string              `mapstructure:"crypto_strategies"`
	StockStrategies   []string              `mapstructure:"stock_strategies"`
	Quotas            map[string]int        `mapstructure:"quotas"`
	Blacklist         []string              `mapstructure:"blacklist"`
	MaxSymbols        int                   `mapstructure:"max_symbols"`
	MarketHoursOnly   bool                  `mapstructure:"market_hours_only"`
	Listings          ListingsConfig        `mapstructure:"listings"`
	Metadata          map[string]SymbolMeta `mapstructure:"metadata"`
}

// ListingsConfig holds the static listing and trending feeds.
type ListingsConfig struct {
	New      []string `mapstructure:"new"`
	Trending []string `mapstructure:"trending"`
	PumpFun  []string `mapstructure:"pumpfun"`
	GMGN     []string `mapstructure:"gmgn"`
}

// SymbolMeta holds reference data the brokers do not report.
type SymbolMeta struct {
	MarketCap float64 `mapstructure:"market_cap"`
	Float     float64 `mapstructure:"float"`
	IsETF     bool    `mapstructure:"is_etf"`
	Leverage  float64 `mapstructure:"leverage"`
	RVol      float64 `mapstructure:"rvol"`
}

// CompoundingConfig holds streak-based compounding settings.
type CompoundingConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	BasePercent   float64 `mapstructure:"base_percent"`
	DrawdownReset float64 `mapstructure:"drawdown_reset"`
}

// PolicyConfig holds reentry and prioritisation settings.
type PolicyConfig struct {
	HistoryCap             int      `mapstructure:"history_cap"`
	MinTrades              int      `mapstructure:"min_trades"`
	TopSymbols             int      `mapstructure:"top_symbols"`
	MoonshotStrategies     []string `mapstructure:"moonshot_strategies"`
	ReentryEnabled         bool     `mapstructure:"reentry_enabled"`
	ReentryConfidenceRatio float64  `mapstructure:"reentry_confidence_ratio"`
	ReentryGainRatio       float64  `mapstructure:"reentry_gain_ratio"`
}

// BrokerConfig holds broker adapter settings.
type BrokerConfig struct {
	Kind    string        `mapstructure:"kind"` // paper, binance
	ID      string        `mapstructure:"id"`
	ModelID string        `mapstructure:"model_id"`
	Paper   PaperConfig   `mapstructure:"paper"`
	Binance BinanceConfig `mapstructure:"binance"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

// PaperConfig holds simulated account settings.
type PaperConfig struct {
	Balance       float64 `mapstructure:"balance"`
	MarginEnabled bool    `mapstructure:"margin_enabled"`
	MarginBalance float64 `mapstructure:"margin_balance"`
}

// BinanceConfig holds Binance API credentials.
type BinanceConfig struct {
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	Testnet    bool   `mapstructure:"testnet"`
	QuoteAsset string `mapstructure:"quote_asset"`
}

// RetryConfig holds broker call retry settings.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
}

// BreakerConfig holds broker circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// TrackingConfig holds in-memory summary settings.
type TrackingConfig struct {
	SummaryCap int `mapstructure:"summary_cap"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Terminal TerminalConfig `mapstructure:"terminal"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// TerminalConfig holds terminal notification configuration.
type TerminalConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Bell    bool `mapstructure:"bell"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig holds redis pub/sub notification configuration.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// MetricsConfig holds prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/ultimabot"
	}
	return filepath.Join(home, ".config", "ultimabot")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by the template and loading continues.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}

	normalize(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	normalize(cfg)
	return cfg
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)
	return v
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("engine.mode", "Easy")
	v.SetDefault("engine.asset_class", "crypto")
	v.SetDefault("engine.poll_interval", 5*time.Second)
	v.SetDefault("engine.scan_schedule", "@every 1m")
	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.confidence_floor", 0.95)
	v.SetDefault("engine.trail_to_moon", true)
	v.SetDefault("engine.candle_interval", "5m")
	v.SetDefault("engine.candle_limit", 100)

	v.SetDefault("risk.allocation_percent", 0.75)
	v.SetDefault("risk.margin_floor_buffer", 0.20)
	v.SetDefault("risk.max_trade_risk", 0.02)
	v.SetDefault("risk.max_account_risk", 0.25)
	v.SetDefault("risk.confidence_buffer", 0.20)
	v.SetDefault("risk.max_atr_percent", 0.05)
	v.SetDefault("risk.base_allocation", 0.02)
	v.SetDefault("risk.streak_boost_threshold", 3)
	v.SetDefault("risk.streak_boost", 1.25)

	v.SetDefault("autoclose.confidence_floor", 0.93)
	v.SetDefault("autoclose.confidence_drop", 0.10)
	v.SetDefault("autoclose.hero_timeout", 60*time.Minute)
	v.SetDefault("autoclose.trail_buffer", 0.95)
	v.SetDefault("autoclose.momentum_threshold", 0.02)
	v.SetDefault("autoclose.trail_atr_multiple", 0.6)
	v.SetDefault("autoclose.default_atr", 0.5)

	v.SetDefault("discovery.crypto_volume_floor", 1_000_000.0)
	v.SetDefault("discovery.stock_volume_floor", 2_000_000.0)
	v.SetDefault("discovery.crypto_strategies", []string{
		"coinmarketcap", "micro_cap_moonshot", "volume_spike_100x",
		"pumpfun_trending", "gmgn_trending", "original", "mid_low_cap",
	})
	v.SetDefault("discovery.stock_strategies", []string{"top_volume"})
	v.SetDefault("discovery.quotas", map[string]int{
		"coinmarketcap":      8,
		"micro_cap_moonshot": 6,
		"volume_spike_100x":  6,
		"pumpfun_trending":   5,
		"gmgn_trending":      5,
		"original":           5,
		"mid_low_cap":        5,
		"top_volume":         10,
		"freshman":           5,
		"large_cap":          5,
		"super_leverage":     5,
		"cameron":            5,
	})
	v.SetDefault("discovery.blacklist", []string{"XYZQ", "ABCD"})
	v.SetDefault("discovery.max_symbols", 50)
	v.SetDefault("discovery.market_hours_only", true)

	v.SetDefault("compounding.enabled", false)
	v.SetDefault("compounding.base_percent", 0.02)
	v.SetDefault("compounding.drawdown_reset", 0.10)

	v.SetDefault("policy.history_cap", 100)
	v.SetDefault("policy.min_trades", 3)
	v.SetDefault("policy.top_symbols", 5)
	v.SetDefault("policy.moonshot_strategies", []string{"micro_cap_moonshot", "volume_spike_100x"})
	v.SetDefault("policy.reentry_enabled", true)
	v.SetDefault("policy.reentry_confidence_ratio", 0.95)
	v.SetDefault("policy.reentry_gain_ratio", 1.1)

	v.SetDefault("broker.kind", "paper")
	v.SetDefault("broker.id", "paper")
	v.SetDefault("broker.model_id", "trend")
	v.SetDefault("broker.paper.balance", 10_000.0)
	v.SetDefault("broker.paper.margin_enabled", false)
	v.SetDefault("broker.paper.margin_balance", 0.0)
	v.SetDefault("broker.binance.quote_asset", "USDT")
	v.SetDefault("broker.retry.max_attempts", 5)
	v.SetDefault("broker.retry.initial_delay", time.Second)
	v.SetDefault("broker.retry.max_delay", 30*time.Second)
	v.SetDefault("broker.retry.backoff_factor", 2.0)
	v.SetDefault("broker.breaker.failure_threshold", 5)
	v.SetDefault("broker.breaker.success_threshold", 2)
	v.SetDefault("broker.breaker.timeout", 30*time.Second)

	v.SetDefault("storage.path", filepath.Join(configDir, "trades.db"))
	v.SetDefault("tracking.summary_cap", 10_000)

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.terminal.enabled", true)
	v.SetDefault("notifications.terminal.bell", true)
	v.SetDefault("notifications.webhook.timeout", 5*time.Second)
	v.SetDefault("notifications.redis.addr", "localhost:6379")
	v.SetDefault("notifications.redis.channel", "ultimabot:events")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "ultimabot.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
}

// normalize restores symbol case that viper folds when reading map keys.
func normalize(cfg *Config) {
	if len(cfg.Discovery.Metadata) > 0 {
		meta := make(map[string]SymbolMeta, len(cfg.Discovery.Metadata))
		for sym, m := range cfg.Discovery.Metadata {
			meta[strings.ToUpper(sym)] = m
		}
		cfg.Discovery.Metadata = meta
	}
	for i, s := range cfg.Discovery.Blacklist {
		cfg.Discovery.Blacklist[i] = strings.ToUpper(s)
	}
	if len(cfg.Engine.Mode) > 0 {
		cfg.Engine.Mode = strings.ToUpper(cfg.Engine.Mode[:1]) + strings.ToLower(cfg.Engine.Mode[1:])
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Broker.Binance.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Broker.Binance.APISecret = v
	}

	if v := os.Getenv("ULTIMABOT_MODE"); v != "" {
		cfg.Engine.Mode = v
		normalize(cfg)
	}
	if v := os.Getenv("ULTIMABOT_BROKER"); v != "" {
		cfg.Broker.Kind = v
	}
	if v := os.Getenv("ULTIMABOT_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.URL = v
		cfg.Notifications.Webhook.Enabled = true
	}
	if v := os.Getenv("ULTIMABOT_REDIS_ADDR"); v != "" {
		cfg.Notifications.Redis.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Engine.Mode {
	case "Easy", "Hard", "Hero":
	default:
		return fmt.Errorf("invalid mode: %s (must be Easy, Hard or Hero)", c.Engine.Mode)
	}

	if c.Engine.AssetClass != "crypto" && c.Engine.AssetClass != "stock" {
		return fmt.Errorf("invalid asset_class: %s (must be 'crypto' or 'stock')", c.Engine.AssetClass)
	}

	if c.Broker.Kind != "paper" && c.Broker.Kind != "binance" {
		return fmt.Errorf("invalid broker kind: %s (must be 'paper' or 'binance')", c.Broker.Kind)
	}

	if c.Engine.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}

	for name, v := range map[string]float64{
		"risk.allocation_percent":    c.Risk.AllocationPercent,
		"risk.margin_floor_buffer":   c.Risk.MarginFloorBuffer,
		"risk.max_trade_risk":        c.Risk.MaxTradeRisk,
		"risk.max_account_risk":      c.Risk.MaxAccountRisk,
		"risk.base_allocation":       c.Risk.BaseAllocation,
		"engine.confidence_floor":    c.Engine.ConfidenceFloor,
		"autoclose.confidence_floor": c.AutoClose.ConfidenceFloor,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}

	if c.Broker.Retry.MaxAttempts < 1 {
		return fmt.Errorf("broker.retry.max_attempts must be at least 1")
	}

	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return fmt.Errorf("notifications.webhook.url is required when the webhook is enabled")
	}

	return nil
}

// IsPaper returns true if the simulated broker is configured.
func (c *Config) IsPaper() bool {
	return c.Broker.Kind == "paper"
}

// Quota returns the configured quota for a strategy, or 0.
func (c *Config) Quota(strategy string) int {
	return c.Discovery.Quotas[strings.ToLower(strategy)]
}

// SetValue writes one key to config.toml in configDir, creating the file
// from the template when missing. Other keys are left as they are.
func SetValue(configDir, key string, value interface{}) error {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createTemplateConfig(configDir); err != nil {
			return err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config.toml: %w", err)
	}
	v.Set(key, value)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("writing config.toml: %w", err)
	}
	return nil
}
