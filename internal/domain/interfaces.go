package domain

import "context"

// SymbolSource is the part of the terminal the symbol resolver needs.
type SymbolSource interface {
	Symbols(ctx context.Context) ([]string, error)
	// SymbolInfo returns nil, nil when the terminal does not know the symbol.
	SymbolInfo(ctx context.Context, name string) (*SymbolInfo, error)
}

// Terminal defines the interface for interacting with a MetaTrader 5 terminal.
type Terminal interface {
	SymbolSource

	IsConnected() bool
	// SymbolTick returns nil, nil when no quote is available.
	SymbolTick(ctx context.Context, name string) (*Tick, error)
	SelectSymbol(ctx context.Context, name string) (bool, error)
	OrderSend(ctx context.Context, req *OrderRequest) (*OrderResult, error)
	// Positions lists open positions, all of them when symbol is empty.
	Positions(ctx context.Context, symbol string) ([]Position, error)
}
