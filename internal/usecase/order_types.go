package usecase

import (
	"fmt"

	"github.com/vitos/signal_bridge/internal/domain"
)

// OrderTypeFor maps a signal action onto the terminal's order type code.
// Raw actions are accepted in any case, including the Long/Short aliases.
func OrderTypeFor(action domain.Action) (domain.OrderType, error) {
	switch domain.ParseAction(string(action)) {
	case domain.ActionBuy:
		return domain.OrderTypeBuy, nil
	case domain.ActionSell:
		return domain.OrderTypeSell, nil
	case domain.ActionBuyLimit:
		return domain.OrderTypeBuyLimit, nil
	case domain.ActionSellLimit:
		return domain.OrderTypeSellLimit, nil
	case domain.ActionBuyStop:
		return domain.OrderTypeBuyStop, nil
	case domain.ActionSellStop:
		return domain.OrderTypeSellStop, nil
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrUnsupportedAction, action)
}

func isMarketOrder(t domain.OrderType) bool {
	return t == domain.OrderTypeBuy || t == domain.OrderTypeSell
}

func tradeActionFor(t domain.OrderType) domain.TradeAction {
	if isMarketOrder(t) {
		return domain.TradeActionDeal
	}
	return domain.TradeActionPending
}

// closingType is the market order type that offsets a position.
func closingType(p domain.Position) domain.OrderType {
	if p.Type == domain.OrderTypeBuy {
		return domain.OrderTypeSell
	}
	return domain.OrderTypeBuy
}

// priceFor picks the side of the quote an order of type t executes against:
// market buys take the ask, everything else the bid.
func priceFor(t domain.OrderType, tick *domain.Tick) float64 {
	if t == domain.OrderTypeBuy {
		return tick.Ask
	}
	return tick.Bid
}
