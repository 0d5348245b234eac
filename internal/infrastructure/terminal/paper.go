package terminal

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/signal_bridge/internal/domain"
	"go.uber.org/zap"
)

// PaperTerminal simulates a terminal in memory. Deals fill immediately at the
// requested price; pending orders are recorded but never trigger.
// This is used for dry runs of the webhook pipeline.
type PaperTerminal struct {
	mu         sync.Mutex
	connected  bool
	names      []string
	infos      map[string]domain.SymbolInfo
	ticks      map[string]domain.Tick
	positions  []domain.Position
	pending    []domain.OrderRequest
	nextTicket uint64
	logger     *zap.Logger
	timeNow    func() time.Time
}

func NewPaperTerminal(logger *zap.Logger) *PaperTerminal {
	return &PaperTerminal{
		infos:      make(map[string]domain.SymbolInfo),
		ticks:      make(map[string]domain.Tick),
		nextTicket: 1000,
		logger:     logger,
		timeNow:    time.Now,
	}
}

// AddSymbol registers a tradable symbol with its current quote.
func (p *PaperTerminal) AddSymbol(info domain.SymbolInfo, bid, ask float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.infos[info.Name]; !exists {
		p.names = append(p.names, info.Name)
	}
	p.infos[info.Name] = info
	p.ticks[info.Name] = domain.Tick{Symbol: info.Name, Bid: bid, Ask: ask, Time: p.timeNow()}
}

// SetQuote updates the quote of a known symbol.
func (p *PaperTerminal) SetQuote(symbol string, bid, ask float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.infos[symbol]; ok {
		p.ticks[symbol] = domain.Tick{Symbol: symbol, Bid: bid, Ask: ask, Time: p.timeNow()}
	}
}

func (p *PaperTerminal) Connect(ctx context.Context) error {
	p.mu.Lock()
	p.connected = true
	count := len(p.names)
	p.mu.Unlock()
	p.logger.Info("Connected to paper terminal", zap.Int("symbols", count))
	return nil
}

func (p *PaperTerminal) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}

func (p *PaperTerminal) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *PaperTerminal) Symbols(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.names...), nil
}

func (p *PaperTerminal) SymbolInfo(ctx context.Context, name string) (*domain.SymbolInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.infos[name]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (p *PaperTerminal) SymbolTick(ctx context.Context, name string) (*domain.Tick, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tick, ok := p.ticks[name]
	if !ok {
		return nil, nil
	}
	return &tick, nil
}

func (p *PaperTerminal) SelectSymbol(ctx context.Context, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.infos[name]
	if !ok {
		return false, nil
	}
	info.Visible = true
	p.infos[name] = info
	return true, nil
}

func (p *PaperTerminal) OrderSend(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, ok := p.infos[req.Symbol]
	if !ok {
		return &domain.OrderResult{Retcode: domain.RetcodeInvalidRequest, Comment: "Invalid request"}, nil
	}
	if req.Volume <= 0 ||
		(info.VolumeMin > 0 && req.Volume < info.VolumeMin) ||
		(info.VolumeMax > 0 && req.Volume > info.VolumeMax) {
		return &domain.OrderResult{Retcode: domain.RetcodeInvalidVolume, Comment: "Invalid volume"}, nil
	}

	p.nextTicket++
	ticket := p.nextTicket
	result := &domain.OrderResult{
		Retcode: domain.RetcodeDone,
		Comment: "Request executed",
		Order:   ticket,
		Volume:  req.Volume,
		Price:   req.Price,
	}

	switch {
	case req.Action == domain.TradeActionPending:
		p.pending = append(p.pending, *req)
	case req.Position != 0:
		if !p.reduce(req.Position, req.Volume) {
			return &domain.OrderResult{Retcode: domain.RetcodeInvalidRequest, Comment: "Position not found"}, nil
		}
		result.Deal = ticket
	default:
		p.positions = append(p.positions, domain.Position{
			Ticket:    ticket,
			Symbol:    req.Symbol,
			Type:      req.Type,
			Volume:    req.Volume,
			PriceOpen: req.Price,
		})
		result.Deal = ticket
	}

	p.logger.Debug("Paper order filled",
		zap.Uint64("ticket", ticket),
		zap.String("symbol", req.Symbol),
		zap.Stringer("type", req.Type),
		zap.Float64("volume", req.Volume))
	return result, nil
}

const volumeEpsilon = 1e-9

// reduce closes volume of the position with ticket, removing it when fully
// closed.
func (p *PaperTerminal) reduce(ticket uint64, volume float64) bool {
	for i := range p.positions {
		if p.positions[i].Ticket != ticket {
			continue
		}
		if volume >= p.positions[i].Volume-volumeEpsilon {
			p.positions = append(p.positions[:i], p.positions[i+1:]...)
		} else {
			p.positions[i].Volume -= volume
		}
		return true
	}
	return false
}

func (p *PaperTerminal) Positions(ctx context.Context, symbol string) ([]domain.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []domain.Position
	for _, pos := range p.positions {
		if symbol == "" || pos.Symbol == symbol {
			out = append(out, pos)
		}
	}
	return out, nil
}

// PendingOrders returns the pending orders accepted so far.
func (p *PaperTerminal) PendingOrders() []domain.OrderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OrderRequest(nil), p.pending...)
}

func (p *PaperTerminal) AccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	return &domain.AccountInfo{Name: "paper", Server: "paper", Currency: "USD", Leverage: 100}, nil
}
