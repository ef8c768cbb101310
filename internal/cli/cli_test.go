package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Steinwealth/UltimaBot/internal/broker"
	"github.com/Steinwealth/UltimaBot/internal/config"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := runRoot(t, "version", "--json")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got["version"] != Version {
		t.Errorf("version = %q, want %q", got["version"], Version)
	}
}

func TestModeSetPersists(t *testing.T) {
	dir := t.TempDir()

	if _, err := runRoot(t, "--config", dir, "mode", "set", "hero"); err != nil {
		t.Fatalf("mode set error = %v", err)
	}

	out, err := runRoot(t, "--config", dir, "mode", "--json")
	if err != nil {
		t.Fatalf("mode error = %v", err)
	}
	var got struct {
		Active string `json:"active"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Active != "Hero" {
		t.Errorf("active = %q, want Hero", got.Active)
	}
}

func TestModeSetRejectsUnknown(t *testing.T) {
	dir := t.TempDir()
	if _, err := runRoot(t, "--config", dir, "mode", "set", "turbo"); err == nil {
		t.Error("mode set accepted an unknown mode")
	}
}

func TestConfigShowRedactsCredentials(t *testing.T) {
	dir := t.TempDir()
	content := `
[broker.binance]
api_key = "abcd1234efgh5678ijkl"
api_secret = "topsecretvalue"

[notifications.webhook]
url = "https://hooks.example.com/services/T0/B0/SECRETTOKEN"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := runRoot(t, "--config", dir, "config", "show", "--json")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, secret := range []string{"1234efgh5678", "topsecretvalue", "SECRETTOKEN"} {
		if strings.Contains(out, secret) {
			t.Errorf("config show leaked %q", secret)
		}
	}
}

func TestHistoryRejectsBadSymbol(t *testing.T) {
	dir := t.TempDir()
	if _, err := runRoot(t, "--config", dir, "history", "BTC;DROP"); err == nil {
		t.Error("history accepted an invalid symbol")
	}
}

func TestSummaryWithoutTrades(t *testing.T) {
	dir := t.TempDir()
	out, err := runRoot(t, "--config", dir, "summary")
	if err != nil {
		t.Fatalf("summary error = %v", err)
	}
	if !strings.Contains(out, "No closed trades") {
		t.Errorf("summary output = %q", out)
	}
}

func TestCanonicalMode(t *testing.T) {
	tests := map[string]string{
		"easy":  "Easy",
		"HARD":  "Hard",
		"Hero":  "Hero",
		"turbo": "turbo",
	}
	for in, want := range tests {
		if got := canonicalMode(in); got != want {
			t.Errorf("canonicalMode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPaperBrokerGuardedOnce(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	app, err := newApp(cfg, dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	g, err := app.Broker()
	if err != nil {
		t.Fatalf("Broker() error = %v", err)
	}
	if _, ok := g.Unwrap().(*broker.PaperBroker); !ok {
		t.Fatalf("Unwrap() = %T, want *broker.PaperBroker", g.Unwrap())
	}
	again, _ := app.Broker()
	if again != g {
		t.Error("Broker() built a second client")
	}

	stats := app.Breakers.AllStats()
	if len(stats) != 1 || stats[0].Name != cfg.Broker.ID {
		t.Errorf("breakers = %+v, want only %q", stats, cfg.Broker.ID)
	}
}
