package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), func() error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("Retry() error = %v, want %v", err, errTransient)
	}
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
}

func TestRetryIfStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	cfg := fastRetry().RetryIf(func(err error) bool { return errors.Is(err, errTransient) })

	calls := 0
	_, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("error = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastRetry()
	cfg.InitialDelay = time.Hour
	err := Retry(ctx, cfg, func() error { return errTransient })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	got := CalculateBackoff(3, time.Second, time.Minute, 2)
	if got != 8*time.Second {
		t.Errorf("CalculateBackoff(3) = %v, want 8s", got)
	}
	if got := CalculateBackoff(10, time.Second, time.Minute, 2); got != time.Minute {
		t.Errorf("CalculateBackoff(10) = %v, want 1m", got)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{FormatUSD(1234567.891), "$1,234,567.89"},
		{FormatUSD(-12.5), "-$12.50"},
		{FormatUSD(999), "$999.00"},
		{FormatPnL(5), "+$5.00"},
		{FormatPercent(2.5), "+2.50%"},
		{FormatPercent(-1), "-1.00%"},
		{FormatCompact(2_500_000), "2.50M"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}

	if Round2(0.125) != 0.13 {
		t.Errorf("Round2(0.125) = %v, want 0.13", Round2(0.125))
	}
}

func TestMarketStatusAt(t *testing.T) {
	// Wednesday 2024-01-10
	at := func(h, m int) time.Time {
		return time.Date(2024, 1, 10, h, m, 0, 0, NewYork)
	}

	if got := MarketStatusAt(at(10, 0)); got != MarketOpen {
		t.Errorf("10:00 = %s, want OPEN", got)
	}
	if got := MarketStatusAt(at(8, 0)); got != MarketPreOpen {
		t.Errorf("08:00 = %s, want PRE_OPEN", got)
	}
	if got := MarketStatusAt(at(17, 0)); got != MarketAfterHours {
		t.Errorf("17:00 = %s, want AFTER_HOURS", got)
	}
	saturday := time.Date(2024, 1, 13, 12, 0, 0, 0, NewYork)
	if got := MarketStatusAt(saturday); got != MarketClosed {
		t.Errorf("saturday = %s, want CLOSED", got)
	}

	next := NextMarketOpen(time.Date(2024, 1, 12, 17, 0, 0, 0, NewYork))
	if next.Weekday() != time.Monday || next.Hour() != 9 || next.Minute() != 30 {
		t.Errorf("NextMarketOpen(friday evening) = %v, want monday 09:30", next)
	}
}
