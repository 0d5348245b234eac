package terminal

import (
	"context"
	"fmt"
	"strings"

	"github.com/vitos/signal_bridge/internal/config"
	"github.com/vitos/signal_bridge/internal/domain"
	"go.uber.org/zap"
)

// Connector is a terminal with an explicit connection lifecycle.
type Connector interface {
	domain.Terminal
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	AccountInfo(ctx context.Context) (*domain.AccountInfo, error)
}

var (
	_ Connector = (*GatewayAdapter)(nil)
	_ Connector = (*PaperTerminal)(nil)
)

// New builds the terminal selected by cfg.Mode.
func New(cfg config.TerminalConfig, logger *zap.Logger) (Connector, error) {
	switch strings.ToLower(cfg.Mode) {
	case config.ModeGateway:
		return NewGatewayAdapter(GatewayConfig{
			BaseURL:   strings.TrimRight(cfg.GatewayURL, "/"),
			StreamURL: cfg.StreamURL,
			Login:     cfg.Account,
			Password:  cfg.Password,
			Server:    cfg.Server,
			Path:      cfg.Path,
			Timeout:   cfg.Timeout(),
		}, logger), nil
	case config.ModePaper:
		p := NewPaperTerminal(logger)
		for _, s := range cfg.Paper.Symbols {
			p.AddSymbol(domain.SymbolInfo{
				Name:         s.Name,
				Description:  s.Description,
				Digits:       s.Digits,
				ContractSize: s.ContractSize,
				VolumeMin:    s.VolumeMin,
				VolumeMax:    s.VolumeMax,
				VolumeStep:   s.VolumeStep,
				Visible:      true,
			}, s.Bid, s.Ask)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown terminal mode %q", cfg.Mode)
}
