package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/vitos/signal_bridge/internal/domain"
	"go.uber.org/zap"
)

// OrderService turns trading signals into terminal orders. Every terminal
// call it makes, including batch closes and read-only lookups, is serialized
// on one mutex because the terminal connection is shared process-wide.
type OrderService struct {
	terminal domain.Terminal
	resolver *SymbolResolver
	logger   *zap.Logger
	mu       sync.Mutex
}

// CloseReport summarizes a batch close. Earlier successes persist even when
// a later position fails to close.
type CloseReport struct {
	Symbol        string   `json:"symbol,omitempty"`
	Found         int      `json:"found"`
	Closed        int      `json:"closed"`
	FailedTickets []uint64 `json:"failed_tickets,omitempty"`
}

type SymbolReport struct {
	Requested string `json:"requested"`
	Resolution
	Info *domain.SymbolInfo `json:"info"`
}

func NewOrderService(terminal domain.Terminal, resolver *SymbolResolver, logger *zap.Logger) *OrderService {
	return &OrderService{
		terminal: terminal,
		resolver: resolver,
		logger:   logger,
	}
}

// Submit places the order described by sig and reports whether the terminal
// accepted it. Failures are logged, never returned.
func (s *OrderService) Submit(ctx context.Context, sig domain.TradingSignal) bool {
	s.logger.Info("New signal received",
		zap.String("action", string(sig.Action)),
		zap.String("symbol", sig.Symbol),
		zap.Float64("volume", sig.Volume),
		zap.Float64("price", sig.Price),
		zap.Float64("sl", sig.StopLoss),
		zap.Float64("tp", sig.TakeProfit))

	res, err := s.PlaceOrder(ctx, sig)
	if err != nil {
		s.logFailure("Order failed", err, zap.String("symbol", sig.Symbol), zap.String("action", string(sig.Action)))
		return false
	}
	s.logger.Info("Order placed", zap.Uint64("ticket", res.Order), zap.Float64("price", res.Price))
	return true
}

// PlaceOrder validates sig, builds the terminal request and sends it. The
// returned error wraps one of the domain sentinel errors.
func (s *OrderService) PlaceOrder(ctx context.Context, sig domain.TradingSignal) (*domain.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.terminal.IsConnected() {
		return nil, domain.ErrNotConnected
	}
	if strings.TrimSpace(sig.Symbol) == "" {
		return nil, fmt.Errorf("%w: missing symbol", domain.ErrInvalidSignal)
	}
	if sig.Volume <= 0 {
		return nil, fmt.Errorf("%w: volume %v", domain.ErrInvalidSignal, sig.Volume)
	}

	symbol := s.resolver.Resolve(ctx, sig.Symbol)

	info, err := s.ensureTradeable(ctx, symbol)
	if err != nil {
		return nil, err
	}

	orderType, err := OrderTypeFor(sig.Action)
	if err != nil {
		return nil, err
	}

	price := sig.Price
	if price <= 0 {
		tick, err := s.quote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		price = priceFor(orderType, tick)
	}

	req := &domain.OrderRequest{
		Action:      tradeActionFor(orderType),
		Symbol:      symbol,
		Volume:      sig.Volume,
		Type:        orderType,
		Price:       roundPrice(price, info.Digits),
		SL:          roundPrice(sig.StopLoss, info.Digits),
		TP:          roundPrice(sig.TakeProfit, info.Digits),
		Deviation:   domain.OrderDeviation,
		Magic:       domain.OrderMagic,
		Comment:     domain.SignalComment,
		TypeTime:    domain.OrderTimeGTC,
		TypeFilling: domain.OrderFillingFOK,
	}

	s.logger.Info("Sending order to terminal",
		zap.String("symbol", req.Symbol),
		zap.Stringer("type", req.Type),
		zap.Float64("volume", req.Volume),
		zap.Float64("price", req.Price))

	return s.send(ctx, req)
}

// ClosePositions closes every open position, or only those of symbol when
// it is not empty. It reports success whenever the positions could be
// listed, regardless of individual close outcomes.
func (s *OrderService) ClosePositions(ctx context.Context, symbol string) bool {
	report, err := s.CloseAll(ctx, symbol)
	if err != nil {
		s.logFailure("Close failed", err, zap.String("symbol", symbol))
		return false
	}
	if len(report.FailedTickets) > 0 {
		s.logger.Warn("Some positions could not be closed",
			zap.Int("closed", report.Closed),
			zap.Uint64s("failed_tickets", report.FailedTickets))
	}
	return true
}

func (s *OrderService) CloseAll(ctx context.Context, symbol string) (CloseReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.terminal.IsConnected() {
		return CloseReport{}, domain.ErrNotConnected
	}

	if symbol != "" {
		symbol = s.resolver.Resolve(ctx, symbol)
		s.logger.Info("Closing positions", zap.String("symbol", symbol))
	} else {
		s.logger.Info("Closing all positions")
	}

	positions, err := s.terminal.Positions(ctx, symbol)
	if err != nil {
		return CloseReport{}, fmt.Errorf("%w: list positions: %w", domain.ErrTransport, err)
	}

	report := CloseReport{Symbol: symbol, Found: len(positions)}
	if len(positions) == 0 {
		s.logger.Info("No positions to close")
		return report, nil
	}
	s.logger.Info("Found positions to close", zap.Int("count", len(positions)))

	// Once started, the batch runs to completion.
	ctx = context.WithoutCancel(ctx)
	for _, p := range positions {
		if err := s.closePosition(ctx, p); err != nil {
			report.FailedTickets = append(report.FailedTickets, p.Ticket)
			s.logFailure("Failed to close position", err, zap.Uint64("ticket", p.Ticket), zap.String("symbol", p.Symbol))
			continue
		}
		report.Closed++
		s.logger.Info("Closed position", zap.Uint64("ticket", p.Ticket))
	}
	return report, nil
}

func (s *OrderService) closePosition(ctx context.Context, p domain.Position) error {
	orderType := closingType(p)
	tick, err := s.quote(ctx, p.Symbol)
	if err != nil {
		return err
	}

	s.logger.Info("Closing position",
		zap.Uint64("ticket", p.Ticket),
		zap.String("symbol", p.Symbol),
		zap.Float64("volume", p.Volume),
		zap.String("side", p.Side()))

	_, err = s.send(ctx, &domain.OrderRequest{
		Action:      domain.TradeActionDeal,
		Symbol:      p.Symbol,
		Volume:      p.Volume,
		Type:        orderType,
		Position:    p.Ticket,
		Price:       priceFor(orderType, tick),
		Deviation:   domain.OrderDeviation,
		Magic:       domain.OrderMagic,
		Comment:     domain.AutoCloseComment,
		TypeTime:    domain.OrderTimeGTC,
		TypeFilling: domain.OrderFillingFOK,
	})
	return err
}

// SymbolReport resolves external and returns the terminal's metadata for the
// result. It returns nil, nil when the terminal does not know the symbol.
func (s *OrderService) SymbolReport(ctx context.Context, external string) (*SymbolReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.resolver.ResolveDetailed(ctx, external)
	info, err := s.terminal.SymbolInfo(ctx, res.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: symbol info %s: %w", domain.ErrTransport, res.Symbol, err)
	}
	if info == nil {
		return nil, nil
	}
	return &SymbolReport{Requested: external, Resolution: res, Info: info}, nil
}

// OpenPositions lists every open position. Like submissions, it waits for
// any in-flight order or close batch.
func (s *OrderService) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.terminal.IsConnected() {
		return nil, domain.ErrNotConnected
	}
	positions, err := s.terminal.Positions(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: list positions: %w", domain.ErrTransport, err)
	}
	return positions, nil
}

func (s *OrderService) IsConnected() bool {
	return s.terminal.IsConnected()
}

// ensureTradeable checks that the terminal knows symbol and that it is in
// Market Watch, selecting it when it is not.
func (s *OrderService) ensureTradeable(ctx context.Context, symbol string) (*domain.SymbolInfo, error) {
	info, err := s.terminal.SymbolInfo(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: symbol info %s: %w", domain.ErrTransport, symbol, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s is unknown to the terminal", domain.ErrSymbolNotTradeable, symbol)
	}
	if info.Visible {
		return info, nil
	}

	ok, err := s.terminal.SelectSymbol(ctx, symbol)
	if err != nil || !ok {
		s.logger.Warn("Could not add symbol to Market Watch", zap.String("symbol", symbol), zap.Error(err))
		return nil, fmt.Errorf("%w: %s could not be selected", domain.ErrSymbolNotTradeable, symbol)
	}
	return info, nil
}

func (s *OrderService) quote(ctx context.Context, symbol string) (*domain.Tick, error) {
	tick, err := s.terminal.SymbolTick(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: tick %s: %w", domain.ErrTransport, symbol, err)
	}
	if tick == nil {
		return nil, fmt.Errorf("%w: no tick for %s", domain.ErrPricing, symbol)
	}
	return tick, nil
}

func (s *OrderService) send(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	res, err := s.terminal.OrderSend(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: order send: %w", domain.ErrTransport, err)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: order send returned no result", domain.ErrTransport)
	}
	if !res.Done() {
		return res, fmt.Errorf("%w: retcode %d (%s)", domain.ErrBrokerRejection, res.Retcode, res.Comment)
	}
	return res, nil
}

func (s *OrderService) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("reason", FailureReason(err)), zap.Error(err))
	s.logger.Error(msg, fields...)
}

// FailureReason classifies err into a short stable label for logs and API
// responses.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, domain.ErrInvalidSignal):
		return "invalid_signal"
	case errors.Is(err, domain.ErrSymbolNotTradeable):
		return "symbol_not_tradeable"
	case errors.Is(err, domain.ErrUnsupportedAction):
		return "unsupported_action"
	case errors.Is(err, domain.ErrPricing):
		return "pricing"
	case errors.Is(err, domain.ErrBrokerRejection):
		return "broker_rejection"
	case errors.Is(err, domain.ErrTransport):
		return "transport"
	}
	return "unknown"
}

// roundPrice rounds v to the symbol's digits. Zero prices (absent SL/TP) and
// symbols without digit metadata are left alone.
func roundPrice(v float64, digits int) float64 {
	if v == 0 || digits <= 0 {
		return v
	}
	return decimal.NewFromFloat(v).Round(int32(digits)).InexactFloat64()
}
