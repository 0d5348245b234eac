package usecase

import "strings"

// symbolAliases lists the names brokers commonly use for well-known
// instruments, keyed by the upper-cased TradingView name.
var symbolAliases = map[string][]string{
	"EURUSD": {"EUR/USD", "EURUSD", "EURUSDm"},
	"GBPUSD": {"GBP/USD", "GBPUSD", "GBPUSDm"},
	"USDJPY": {"USD/JPY", "USDJPY", "USDJPYm"},
	"AUDUSD": {"AUD/USD", "AUDUSD", "AUDUSDm"},
	"USDCAD": {"USD/CAD", "USDCAD", "USDCADm"},
	"USDCHF": {"USD/CHF", "USDCHF", "USDCHFm"},
	"NZDUSD": {"NZD/USD", "NZDUSD", "NZDUSDm"},

	"XAUUSD": {"GOLD", "XAU/USD", "XAUUSDm"},
	"XAGUSD": {"SILVER", "XAG/USD", "XAGUSDm"},

	"BTCUSD": {"Bitcoin", "BTC/USD", "BTCUSDm"},
	"ETHUSD": {"Ethereum", "ETH/USD", "ETHUSDm"},
}

// symbolVariations returns the mechanical suffix and separator variants of s,
// in the order they are tried.
func symbolVariations(s string) []string {
	return []string{
		s + "m",
		s + ".pro",
		s + "_pro",
		s + ".m",
		s + "_m",
		strings.ReplaceAll(s, "/", ""),
		strings.ReplaceAll(s, "-", ""),
		strings.ReplaceAll(s, "_", ""),
	}
}
