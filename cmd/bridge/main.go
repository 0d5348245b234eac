package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/signal_bridge/internal/config"
	"github.com/vitos/signal_bridge/internal/infrastructure/logger"
	"github.com/vitos/signal_bridge/internal/infrastructure/terminal"
	"github.com/vitos/signal_bridge/internal/usecase"
	"github.com/vitos/signal_bridge/internal/web"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load("config/config.yaml", ".env")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("Config error: %v\n", e)
		}
		os.Exit(1)
	}

	// 2. Init Logger
	log, closeLog, err := logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	log.Info("Starting TradingView to MT5 bridge",
		zap.String("mode", cfg.Terminal.Mode),
		zap.String("addr", cfg.Addr()))

	// 3. Init Terminal
	term, err := terminal.New(cfg.Terminal, log)
	if err != nil {
		log.Fatal("Failed to init terminal", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Terminal.Timeout())
	err = term.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to MT5", zap.Error(err))
	}

	// 4. Init Services
	resolver := usecase.NewSymbolResolver(term, log)
	if err := resolver.RefreshUniverse(context.Background()); err != nil {
		log.Error("Failed to load broker symbols", zap.Error(err))
	}
	orders := usecase.NewOrderService(term, resolver, log)

	// 5. Init Web Server
	server := web.NewServer(cfg.Addr(), orders, resolver, cfg.Server.Debug, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 6. Wait for Shutdown
	<-stop

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	resolver.Reset()
	if err := term.Disconnect(shutdownCtx); err != nil {
		log.Warn("Terminal disconnect failed", zap.Error(err))
	}
}
