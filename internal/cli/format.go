package cli

import (
	"fmt"
	"time"

	"github.com/Steinwealth/UltimaBot/pkg/utils"
)

// Money and percentages share the engine's formatting.
var (
	FormatUSD     = utils.FormatUSD
	FormatPercent = utils.FormatPercent
	FormatPnL     = utils.FormatPnL
)

// FormatPrice formats a price with appropriate decimal places.
func FormatPrice(price float64) string {
	switch {
	case price >= 10:
		return fmt.Sprintf("%.2f", price)
	case price >= 0.01:
		return fmt.Sprintf("%.4f", price)
	}
	return fmt.Sprintf("%.8f", price)
}

// FormatConfidence formats a [0, 1] confidence as a percentage.
func FormatConfidence(conf float64) string {
	return fmt.Sprintf("%.1f%%", conf*100)
}

// FormatDateTime formats a datetime in UTC.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
