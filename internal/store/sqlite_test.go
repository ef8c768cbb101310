package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Steinwealth/UltimaBot/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "trades.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_InsertUpdateHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	entry := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	rec := TradeRecord{
		TradeID:    "t-1",
		Symbol:     "btcusdt",
		BrokerID:   "paper",
		Side:       "buy",
		Mode:       "Hard",
		ModelID:    "trend",
		StrategyID: "original",
		EntryPrice: 100,
		Size:       200,
		TakeProfit: 103,
		StopLoss:   99.3,
		Confidence: 0.97,
		EntryTime:  entry,
		Balance:    10000,
	}
	if err := s.InsertTrade(ctx, rec); err != nil {
		t.Fatalf("InsertTrade() error = %v", err)
	}

	open, err := s.GetTradeHistory(ctx, TradeFilter{Symbol: "BTCUSDT"})
	if err != nil {
		t.Fatalf("GetTradeHistory() error = %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("history len = %d, want 1", len(open))
	}
	if open[0].Status != "open" || !open[0].ExitTime.IsZero() {
		t.Errorf("open trade = %+v", open[0])
	}

	exit := entry.Add(30 * time.Minute)
	err = s.UpdateTrade(ctx, "t-1", TradeUpdate{
		Status:     "closed",
		StopLoss:   99.3,
		ExitPrice:  103,
		ExitReason: "take_profit",
		ExitTime:   exit,
		GainPct:    3,
		GainUSD:    6,
	})
	if err != nil {
		t.Fatalf("UpdateTrade() error = %v", err)
	}

	closed, err := s.GetTradeHistory(ctx, TradeFilter{Status: "closed"})
	if err != nil {
		t.Fatalf("GetTradeHistory() error = %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("closed len = %d, want 1", len(closed))
	}
	got := closed[0]
	if got.ExitReason != "take_profit" || got.GainUSD != 6 || got.ExitPrice != 103 {
		t.Errorf("closed trade = %+v", got)
	}
	if !got.ExitTime.Equal(exit) {
		t.Errorf("ExitTime = %v, want %v", got.ExitTime, exit)
	}
}

func TestSQLiteStore_UpdateMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateTrade(context.Background(), "nope", TradeUpdate{Status: "closed"})
	if !errors.Is(err, errors.ErrTradeNotFound) {
		t.Errorf("UpdateTrade() error = %v, want ErrTradeNotFound", err)
	}
}

func TestSQLiteStore_DuplicateInsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	rec := TradeRecord{TradeID: "dup", Symbol: "ETHUSDT", BrokerID: "paper", Side: "buy", EntryPrice: 1, Size: 1, EntryTime: time.Now()}
	if err := s.InsertTrade(ctx, rec); err != nil {
		t.Fatalf("InsertTrade() error = %v", err)
	}
	if err := s.InsertTrade(ctx, rec); !errors.Is(err, errors.ErrDatabaseError) {
		t.Errorf("duplicate InsertTrade() error = %v, want ErrDatabaseError", err)
	}
}

func TestSQLiteStore_FilterAndLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		broker := "paper"
		if i%2 == 1 {
			broker = "binance"
		}
		rec := TradeRecord{
			TradeID:    fmt.Sprintf("t-%d", i),
			Symbol:     "SOLUSDT",
			BrokerID:   broker,
			Side:       "buy",
			EntryPrice: 10,
			Size:       50,
			EntryTime:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.InsertTrade(ctx, rec); err != nil {
			t.Fatalf("InsertTrade() error = %v", err)
		}
	}

	paper, _ := s.GetTradeHistory(ctx, TradeFilter{BrokerID: "paper"})
	if len(paper) != 3 {
		t.Errorf("paper trades = %d, want 3", len(paper))
	}

	latest, _ := s.GetTradeHistory(ctx, TradeFilter{Limit: 2})
	if len(latest) != 2 || latest[0].TradeID != "t-4" || latest[1].TradeID != "t-3" {
		t.Errorf("latest = %+v", latest)
	}
}

// Property: a closed trade reads back with the gain fields it was closed with.
func TestProperty_CloseRoundTrip(t *testing.T) {
	s := newTestStore(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	counter := 0
	properties.Property("close fields survive a round trip", prop.ForAll(
		func(entry, exit, size float64) bool {
			ctx := context.Background()
			counter++
			id := fmt.Sprintf("prop-%d", counter)
			rec := TradeRecord{TradeID: id, Symbol: "XUSDT", BrokerID: "paper", Side: "buy", EntryPrice: entry, Size: size, EntryTime: time.Now()}
			if err := s.InsertTrade(ctx, rec); err != nil {
				return false
			}
			gainPct := (exit - entry) / entry * 100
			upd := TradeUpdate{Status: "closed", ExitPrice: exit, ExitReason: "manual_close", ExitTime: time.Now(), GainPct: gainPct, GainUSD: gainPct * size / 100}
			if err := s.UpdateTrade(ctx, id, upd); err != nil {
				return false
			}
			rows, err := s.GetTradeHistory(ctx, TradeFilter{Status: "closed"})
			if err != nil {
				return false
			}
			for _, r := range rows {
				if r.TradeID == id {
					return math.Abs(r.GainPct-upd.GainPct) < 1e-9 && math.Abs(r.GainUSD-upd.GainUSD) < 1e-9
				}
			}
			return false
		},
		gen.Float64Range(0.01, 1000),
		gen.Float64Range(0.01, 1000),
		gen.Float64Range(1, 5000),
	))

	properties.TestingRun(t)
}
