package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vitos/signal_bridge/internal/domain"
)

// MockTerminal is an in-memory domain.Terminal with call counters.
type MockTerminal struct {
	mu sync.Mutex

	Connected  bool
	SymbolList []string
	SymbolsErr error
	Infos      map[string]*domain.SymbolInfo
	InfoErr    error
	Ticks      map[string]*domain.Tick
	TickErr    error
	SelectOK   bool
	SelectErr  error
	Open       []domain.Position
	PosErr     error
	// SendFunc overrides the default "always done" OrderSend.
	SendFunc func(req *domain.OrderRequest) (*domain.OrderResult, error)

	SymbolsCalls   int
	InfoCalls      int
	TickCalls      int
	SelectCalls    int
	PositionsCalls int
	PositionsArg   string
	Sent           []*domain.OrderRequest

	inFlight    int32
	maxInFlight int32
	nextTicket  uint64
}

func newMockTerminal(symbols ...string) *MockTerminal {
	m := &MockTerminal{
		Connected:  true,
		SymbolList: symbols,
		Infos:      make(map[string]*domain.SymbolInfo),
		Ticks:      make(map[string]*domain.Tick),
		SelectOK:   true,
	}
	for _, s := range symbols {
		m.Infos[s] = &domain.SymbolInfo{Name: s, Digits: 5, Visible: true}
	}
	return m
}

func (m *MockTerminal) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Connected
}

func (m *MockTerminal) Symbols(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SymbolsCalls++
	if m.SymbolsErr != nil {
		return nil, m.SymbolsErr
	}
	return append([]string(nil), m.SymbolList...), nil
}

func (m *MockTerminal) SymbolInfo(ctx context.Context, name string) (*domain.SymbolInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InfoCalls++
	if m.InfoErr != nil {
		return nil, m.InfoErr
	}
	info, ok := m.Infos[name]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

func (m *MockTerminal) SymbolTick(ctx context.Context, name string) (*domain.Tick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TickCalls++
	if m.TickErr != nil {
		return nil, m.TickErr
	}
	return m.Ticks[name], nil
}

func (m *MockTerminal) SelectSymbol(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SelectCalls++
	return m.SelectOK, m.SelectErr
}

func (m *MockTerminal) OrderSend(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&m.maxInFlight)
		if n <= peak || atomic.CompareAndSwapInt32(&m.maxInFlight, peak, n) {
			break
		}
	}

	m.mu.Lock()
	m.Sent = append(m.Sent, req)
	m.nextTicket++
	ticket := m.nextTicket
	send := m.SendFunc
	m.mu.Unlock()

	if send != nil {
		return send(req)
	}
	return &domain.OrderResult{Retcode: domain.RetcodeDone, Order: ticket, Volume: req.Volume, Price: req.Price}, nil
}

func (m *MockTerminal) Positions(ctx context.Context, symbol string) ([]domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PositionsCalls++
	m.PositionsArg = symbol
	if m.PosErr != nil {
		return nil, m.PosErr
	}
	var out []domain.Position
	for _, p := range m.Open {
		if symbol == "" || p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockTerminal) calls() (symbols, infos int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SymbolsCalls, m.InfoCalls
}
