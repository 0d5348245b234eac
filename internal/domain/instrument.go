package domain

import "time"

// SymbolInfo is the terminal's metadata record for a tradable symbol.
type SymbolInfo struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	CurrencyBase   string  `json:"currency_base"`
	CurrencyProfit string  `json:"currency_profit"`
	Point          float64 `json:"point"`
	Digits         int     `json:"digits"`
	ContractSize   float64 `json:"trade_contract_size"`
	VolumeMin      float64 `json:"volume_min"`
	VolumeMax      float64 `json:"volume_max"`
	VolumeStep     float64 `json:"volume_step"`
	Visible        bool    `json:"visible"` // shown in Market Watch
}

type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

type AccountInfo struct {
	Login      int64   `json:"login"`
	Name       string  `json:"name"`
	Server     string  `json:"server"`
	Currency   string  `json:"currency"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Leverage   int     `json:"leverage"`
}
