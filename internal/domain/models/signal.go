package models

// Action is the closed set of directions a TradeSignal can recommend.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Actions lists every valid Action.
func Actions() []Action { return []Action{ActionBuy, ActionSell, ActionHold} }

// TradeSignal is an opinion about what to do on a pair at a point in time.
// Symbol and Timestamp are optional references to the pair and candle that
// produced the signal.
type TradeSignal struct {
	Action     Action  `json:"action" validate:"oneof=buy sell hold"`
	Confidence float64 `json:"confidence" validate:"unit"`
	Reason     string  `json:"reason" validate:"max=2000"`

	Symbol    string `json:"symbol,omitempty" validate:"omitempty,alphanum,max=32"`
	Timestamp int64  `json:"timestamp,omitempty" validate:"gte=0"`
}

// SignalEvent is an accepted TradeSignal as it travels through the pipeline.
type SignalEvent struct {
	ID         string      `json:"id"`
	Signal     TradeSignal `json:"signal"`
	ReceivedAt int64       `json:"received_at"`
}
