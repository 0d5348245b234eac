package domain

// Position represents an open position on the terminal.
type Position struct {
	Ticket    uint64    `json:"ticket"`
	Symbol    string    `json:"symbol"`
	Type      OrderType `json:"type"` // OrderTypeBuy or OrderTypeSell
	Volume    float64   `json:"volume"`
	PriceOpen float64   `json:"price_open"`
	Profit    float64   `json:"profit"`
}

func (p Position) Side() string {
	if p.Type == OrderTypeBuy {
		return "BUY"
	}
	return "SELL"
}
