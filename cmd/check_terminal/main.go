package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vitos/signal_bridge/internal/config"
	"github.com/vitos/signal_bridge/internal/infrastructure/logger"
	"github.com/vitos/signal_bridge/internal/infrastructure/terminal"
	"github.com/vitos/signal_bridge/internal/usecase"
)

func main() {
	symbol := "EURUSD"
	if len(os.Args) > 1 {
		symbol = os.Args[1]
	}

	cfg, err := config.Load("config/config.yaml", ".env")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger("warn")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	term, err := terminal.New(cfg.Terminal, log)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Testing MT5 connection (%s mode)...\n", cfg.Terminal.Mode)
	ctx := context.Background()
	if err := term.Connect(ctx); err != nil {
		fmt.Printf("❌ Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer term.Disconnect(ctx)

	// 1. Account
	acc, err := term.AccountInfo(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get account info: %v\n", err)
	} else {
		fmt.Printf("\n=== Account Information ===\n")
		fmt.Printf("Name: %s\n", acc.Name)
		fmt.Printf("Server: %s\n", acc.Server)
		fmt.Printf("Balance: %.2f\n", acc.Balance)
		fmt.Printf("Equity: %.2f\n", acc.Equity)
		fmt.Printf("Margin: %.2f\n", acc.Margin)
		fmt.Printf("Free Margin: %.2f\n", acc.MarginFree)
		fmt.Printf("Leverage: 1:%d\n", acc.Leverage)
	}

	// 2. Symbols
	names, err := term.Symbols(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to list symbols: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n=== Symbol Information ===\n")
	fmt.Printf("Total symbols available: %d\n", len(names))
	for i, n := range names {
		if i == 10 {
			break
		}
		fmt.Printf("%d. %s\n", i+1, n)
	}

	// 3. Resolve + tick
	resolver := usecase.NewSymbolResolver(term, log)
	res := resolver.ResolveDetailed(ctx, symbol)
	fmt.Printf("\n=== Market Data Test for %s ===\n", symbol)
	fmt.Printf("Resolved to %s (%s)\n", res.Symbol, res.Strategy)

	if ok, err := term.SelectSymbol(ctx, res.Symbol); err != nil || !ok {
		fmt.Printf("❌ Failed to select %s\n", res.Symbol)
		return
	}
	tick, err := term.SymbolTick(ctx, res.Symbol)
	switch {
	case err != nil:
		fmt.Printf("❌ Failed to get tick data: %v\n", err)
	case tick == nil:
		fmt.Printf("❌ No tick data for %s\n", res.Symbol)
	default:
		fmt.Printf("✅ Bid: %f Ask: %f Spread: %f\n", tick.Bid, tick.Ask, tick.Ask-tick.Bid)
	}
}
