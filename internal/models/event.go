package models

import "time"

// EventType names a notification event.
type EventType string

const (
	EventTradeOpened EventType = "trade_opened"
	EventTradeClosed EventType = "trade_closed"
	EventWinStreak   EventType = "win_streak"
)

// Event is a notification broadcast to subscribers. Fields holds the
// event-specific payload (entry_price, gain_pct, streak, ...).
type Event struct {
	Event     EventType              `json:"event"`
	BrokerID  string                 `json:"broker_id,omitempty"`
	Symbol    string                 `json:"symbol,omitempty"`
	TradeID   string                 `json:"trade_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Text      string                 `json:"text,omitempty"`
	Sound     string                 `json:"sound,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
