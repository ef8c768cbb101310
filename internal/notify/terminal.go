package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/pkg/utils"
)

// TerminalSubscriber prints events as marquee lines.
type TerminalSubscriber struct {
	out         io.Writer
	bellEnabled bool
	mu          sync.Mutex
}

// NewTerminalSubscriber writes events to out.
func NewTerminalSubscriber(out io.Writer, bell bool) *TerminalSubscriber {
	return &TerminalSubscriber{out: out, bellEnabled: bell}
}

// Name returns the subscriber name.
func (t *TerminalSubscriber) Name() string { return "terminal" }

// Send prints the event. Events carrying a sound ring the terminal bell.
func (t *TerminalSubscriber) Send(ctx context.Context, ev models.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	line := formatEvent(ev)
	if t.bellEnabled && ev.Sound != "" {
		line += "\a"
	}
	_, err := fmt.Fprintf(t.out, "[%s] %s\n", ts.Format("15:04:05"), line)
	return err
}

func formatEvent(ev models.Event) string {
	switch ev.Event {
	case models.EventTradeOpened:
		size, _ := ev.Fields["size"].(float64)
		return fmt.Sprintf("▲ %s (%s)", ev.Text, utils.FormatUSD(size))
	case models.EventTradeClosed:
		if pct, _ := ev.Fields["gain_pct"].(float64); pct < 0 {
			return "▼ " + ev.Text
		}
		return "● " + ev.Text
	case models.EventWinStreak:
		return "★ " + ev.Text
	}
	return ev.Text
}
