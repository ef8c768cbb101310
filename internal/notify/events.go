package notify

import (
	"fmt"

	"github.com/Steinwealth/UltimaBot/internal/models"
	"github.com/Steinwealth/UltimaBot/pkg/utils"
)

// Sounds attached to events.
const (
	SoundNegative  = "negative.mp3"
	SoundWinStreak = "win_streak.mp3"
)

var streakMessages = map[int]string{
	10: "Winning Streak for 10 Trades!",
	15: "Brutality!!!",
	20: "Tubular!!!",
	25: "Explosive!!!",
	30: "Groovy!!!",
	35: "€£$¥!!!",
}

// StreakMilestone returns the announcement for streak, if it is a milestone.
func StreakMilestone(streak int) (string, bool) {
	msg, ok := streakMessages[streak]
	return msg, ok
}

// TradeOpenedEvent builds the trade_opened event for t.
func TradeOpenedEvent(t *models.Trade) models.Event {
	return models.Event{
		Event:    models.EventTradeOpened,
		BrokerID: t.BrokerID,
		Symbol:   t.Symbol,
		TradeID:  t.TradeID,
		Fields: map[string]interface{}{
			"entry_price": t.EntryPrice,
			"size":        t.Size,
			"confidence":  t.InitialConfidence,
			"tp":          t.TakeProfit,
			"sl":          t.StopLoss,
			"strategy_id": t.StrategyID,
		},
		Text:      fmt.Sprintf("%s opened @ %.4f (conf %.3f)", t.Symbol, t.EntryPrice, t.InitialConfidence),
		Timestamp: t.EntryTime,
	}
}

// TradeClosedEvent builds the trade_closed event for r. Losing closes carry
// the negative sound.
func TradeClosedEvent(r models.CloseRecord) models.Event {
	ev := models.Event{
		Event:    models.EventTradeClosed,
		BrokerID: r.BrokerID,
		Symbol:   r.Symbol,
		TradeID:  r.TradeID,
		Fields: map[string]interface{}{
			"exit_time": r.ClosedAt,
			"gain_pct":  r.GainPct,
			"gain_usd":  r.GainUSD,
			"reason":    string(r.Reason),
		},
		Text:      fmt.Sprintf("%s closed %+.1f%% (%s): %s", r.Symbol, r.GainPct, utils.FormatPnL(r.GainUSD), r.Reason),
		Timestamp: r.ClosedAt,
	}
	if r.GainPct < 0 {
		ev.Sound = SoundNegative
	}
	return ev
}

// WinStreakEvent builds the win_streak event when streak is a milestone.
func WinStreakEvent(brokerID string, streak int) (models.Event, bool) {
	msg, ok := StreakMilestone(streak)
	if !ok {
		return models.Event{}, false
	}
	return models.Event{
		Event:    models.EventWinStreak,
		BrokerID: brokerID,
		Fields:   map[string]interface{}{"streak": streak},
		Text:     msg,
		Sound:    SoundWinStreak,
	}, true
}
