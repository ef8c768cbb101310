package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesTemplate(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Fatalf("expected template to be written: %v", err)
	}
	if cfg.Engine.Mode != "Easy" {
		t.Errorf("Engine.Mode = %q, want Easy", cfg.Engine.Mode)
	}
	if cfg.Engine.PollInterval != 5*time.Second {
		t.Errorf("Engine.PollInterval = %v, want 5s", cfg.Engine.PollInterval)
	}
	if cfg.AutoClose.HeroTimeout != time.Hour {
		t.Errorf("AutoClose.HeroTimeout = %v, want 1h", cfg.AutoClose.HeroTimeout)
	}
	if got := cfg.Quota("coinmarketcap"); got != 8 {
		t.Errorf("Quota(coinmarketcap) = %d, want 8", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[engine]
mode = "hard"

[risk]
max_trade_risk = 0.05

[discovery.metadata.pepeusdt]
market_cap = 900000.0
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Mode != "Hard" {
		t.Errorf("Engine.Mode = %q, want Hard", cfg.Engine.Mode)
	}
	if cfg.Risk.MaxTradeRisk != 0.05 {
		t.Errorf("Risk.MaxTradeRisk = %v, want 0.05", cfg.Risk.MaxTradeRisk)
	}
	if cfg.Risk.AllocationPercent != 0.75 {
		t.Errorf("Risk.AllocationPercent = %v, want default 0.75", cfg.Risk.AllocationPercent)
	}
	if m, ok := cfg.Discovery.Metadata["PEPEUSDT"]; !ok || m.MarketCap != 900000 {
		t.Errorf("metadata for PEPEUSDT = %+v, %v", m, ok)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad mode", func(c *Config) { c.Engine.Mode = "Insane" }, true},
		{"bad broker", func(c *Config) { c.Broker.Kind = "kraken" }, true},
		{"bad risk", func(c *Config) { c.Risk.MaxTradeRisk = 1.5 }, true},
		{"webhook without url", func(c *Config) { c.Notifications.Webhook.Enabled = true }, true},
		{"zero workers", func(c *Config) { c.Engine.Workers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetValue(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := SetValue(dir, "engine.mode", "Hero"); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Mode != "Hero" {
		t.Errorf("Engine.Mode = %q, want Hero", cfg.Engine.Mode)
	}
	if got := cfg.Quota("coinmarketcap"); got != 8 {
		t.Errorf("Quota(coinmarketcap) = %d, want 8 after rewrite", got)
	}
}
