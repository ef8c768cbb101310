package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# UltimaBot Configuration

[engine]
# Trading mode: Easy, Hard, Hero
mode = "Easy"
# Market: crypto or stock
asset_class = "crypto"
# Open trade evaluation interval
poll_interval = "5s"
# Discovery + execution schedule (cron spec)
scan_schedule = "@every 1m"
# Parallel workers for discovery and monitoring
workers = 8
# Minimum forecast confidence for entries
confidence_floor = 0.95
# Extend take profit on breakouts
trail_to_moon = true
candle_interval = "5m"
candle_limit = 100

[risk]
allocation_percent = 0.75
margin_floor_buffer = 0.20
max_trade_risk = 0.02
max_account_risk = 0.25
confidence_buffer = 0.20
max_atr_percent = 0.05
base_allocation = 0.02
streak_boost_threshold = 3
streak_boost = 1.25

[autoclose]
confidence_floor = 0.93
confidence_drop = 0.10
hero_timeout = "60m"
trail_buffer = 0.95
momentum_threshold = 0.02
trail_atr_multiple = 0.6
default_atr = 0.5

[discovery]
crypto_volume_floor = 1000000.0
stock_volume_floor = 2000000.0
crypto_strategies = ["coinmarketcap", "micro_cap_moonshot", "volume_spike_100x", "pumpfun_trending", "gmgn_trending", "original", "mid_low_cap"]
stock_strategies = ["top_volume"]
blacklist = ["XYZQ", "ABCD"]
# Symbols scanned per cycle, highest volume first
max_symbols = 50
# Skip stock scans outside regular trading hours
market_hours_only = true

[discovery.listings]
new = []
trending = []
pumpfun = []
gmgn = []

# Reference data per symbol, e.g.
# [discovery.metadata.PEPEUSDT]
# market_cap = 900000.0

[compounding]
enabled = false
base_percent = 0.02
drawdown_reset = 0.10

[policy]
history_cap = 100
min_trades = 3
top_symbols = 5
moonshot_strategies = ["micro_cap_moonshot", "volume_spike_100x"]
reentry_enabled = true
reentry_confidence_ratio = 0.95
reentry_gain_ratio = 1.1

[broker]
# paper or binance
kind = "paper"
id = "paper"
model_id = "trend"

[broker.paper]
balance = 10000.0
margin_enabled = false
margin_balance = 0.0

[broker.binance]
# Prefer BINANCE_API_KEY / BINANCE_API_SECRET environment variables
api_key = ""
api_secret = ""
testnet = false
quote_asset = "USDT"

[broker.retry]
max_attempts = 5
initial_delay = "1s"
max_delay = "30s"
backoff_factor = 2.0

[broker.breaker]
failure_threshold = 5
success_threshold = 2
timeout = "30s"

[tracking]
summary_cap = 10000

[notifications]
enabled = false

# Prints trade events to stdout; bell rings on closes and streaks
[notifications.terminal]
enabled = true
bell = true

[notifications.webhook]
enabled = false
url = ""
timeout = "5s"

[notifications.redis]
enabled = false
addr = "localhost:6379"
password = ""
db = 0
channel = "ultimabot:events"

[metrics]
enabled = false
listen = ":9090"

[logging]
level = "info"
console = true
file = true
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	// Restricted permissions: the file may hold API credentials
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
