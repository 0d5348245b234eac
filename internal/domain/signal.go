package domain

import "strings"

type Action string

const (
	ActionBuy       Action = "BUY"
	ActionSell      Action = "SELL"
	ActionBuyLimit  Action = "BUY_LIMIT"
	ActionSellLimit Action = "SELL_LIMIT"
	ActionBuyStop   Action = "BUY_STOP"
	ActionSellStop  Action = "SELL_STOP"
	ActionClose     Action = "CLOSE"
)

// ParseAction upper-cases raw and folds the LONG/SHORT aliases onto BUY/SELL.
// Unknown values are returned as-is so callers can report them.
func ParseAction(raw string) Action {
	a := strings.ToUpper(strings.TrimSpace(raw))
	switch a {
	case "LONG":
		return ActionBuy
	case "SHORT":
		return ActionSell
	}
	return Action(a)
}

func (a Action) IsMarket() bool {
	return a == ActionBuy || a == ActionSell
}

func (a Action) IsPending() bool {
	switch a {
	case ActionBuyLimit, ActionSellLimit, ActionBuyStop, ActionSellStop:
		return true
	}
	return false
}

// TradingSignal is a normalized trading intent. Zero Price, StopLoss and
// TakeProfit mean "not supplied".
type TradingSignal struct {
	Action     Action  `json:"action"`
	Symbol     string  `json:"symbol"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}
