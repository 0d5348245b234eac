package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_bridge/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestOrderService(term *MockTerminal) *OrderService {
	logger := zap.NewNop()
	return NewOrderService(term, NewSymbolResolver(term, logger), logger)
}

func eurusdTerminal() *MockTerminal {
	term := newMockTerminal("EURUSD", "XAUUSDm")
	term.Ticks["EURUSD"] = &domain.Tick{Symbol: "EURUSD", Bid: 1.1000, Ask: 1.1002}
	term.Ticks["XAUUSDm"] = &domain.Tick{Symbol: "XAUUSDm", Bid: 2400.10, Ask: 2400.40}
	term.Infos["XAUUSDm"].Digits = 2
	return term
}

func TestPlaceOrder_MarketBuyUsesAsk(t *testing.T) {
	term := eurusdTerminal()
	svc := newTestOrderService(term)

	ok := svc.Submit(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD", Volume: 0.1})
	require.True(t, ok)
	require.Len(t, term.Sent, 1)

	req := term.Sent[0]
	assert.Equal(t, 1.1002, req.Price)
	assert.Equal(t, domain.OrderTypeBuy, req.Type)
	assert.Equal(t, domain.TradeActionDeal, req.Action)
	assert.Equal(t, "EURUSD", req.Symbol)
	assert.Equal(t, 0.1, req.Volume)
	assert.Equal(t, 20, req.Deviation)
	assert.Equal(t, int64(domain.OrderMagic), req.Magic)
	assert.Equal(t, domain.SignalComment, req.Comment)
	assert.Equal(t, domain.OrderTimeGTC, req.TypeTime)
	assert.Equal(t, domain.OrderFillingFOK, req.TypeFilling)
	assert.Zero(t, req.Position)
}

func TestPlaceOrder_PriceSideByOrderType(t *testing.T) {
	tests := []struct {
		action domain.Action
		want   float64
		kind   domain.TradeAction
	}{
		{domain.ParseAction("Long"), 1.1002, domain.TradeActionDeal},
		{domain.ParseAction("short"), 1.1000, domain.TradeActionDeal},
		{domain.ActionSell, 1.1000, domain.TradeActionDeal},
		{domain.ActionBuyLimit, 1.1000, domain.TradeActionPending},
		{domain.ActionSellStop, 1.1000, domain.TradeActionPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			term := eurusdTerminal()
			svc := newTestOrderService(term)

			res, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{Action: tt.action, Symbol: "EURUSD", Volume: 1})
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.want, term.Sent[0].Price)
			assert.Equal(t, tt.kind, term.Sent[0].Action)
		})
	}
}

func TestPlaceOrder_RawLongShortAliases(t *testing.T) {
	tests := []struct {
		action   domain.Action
		wantType domain.OrderType
		want     float64
	}{
		{"Long", domain.OrderTypeBuy, 1.1002},
		{"Short", domain.OrderTypeSell, 1.1000},
		{"buy", domain.OrderTypeBuy, 1.1002},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			term := eurusdTerminal()
			svc := newTestOrderService(term)

			res, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{Action: tt.action, Symbol: "EURUSD", Volume: 1})
			require.NoError(t, err)
			require.NotNil(t, res)
			require.Len(t, term.Sent, 1)
			assert.Equal(t, tt.wantType, term.Sent[0].Type)
			assert.Equal(t, tt.want, term.Sent[0].Price)
			assert.Equal(t, domain.TradeActionDeal, term.Sent[0].Action)
		})
	}
}

func TestPlaceOrder_PendingWithExplicitPrice(t *testing.T) {
	term := eurusdTerminal()
	svc := newTestOrderService(term)

	_, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{
		Action:     domain.ActionBuyLimit,
		Symbol:     "XAUUSD",
		Volume:     0.5,
		Price:      2390.123,
		StopLoss:   2380.006,
		TakeProfit: 2410,
	})
	require.NoError(t, err)

	req := term.Sent[0]
	assert.Equal(t, "XAUUSDm", req.Symbol)
	assert.Equal(t, domain.OrderTypeBuyLimit, req.Type)
	assert.Equal(t, domain.TradeActionPending, req.Action)
	assert.Equal(t, 2390.12, req.Price)
	assert.Equal(t, 2380.01, req.SL)
	assert.Equal(t, 2410.0, req.TP)
	assert.Equal(t, 0, term.TickCalls)
}

func TestPlaceOrder_UnsupportedActionNeverSends(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	term := eurusdTerminal()
	logger := zap.New(core)
	svc := NewOrderService(term, NewSymbolResolver(term, logger), logger)

	for _, action := range []domain.Action{"SCALE_IN", domain.ActionClose, ""} {
		ok := svc.Submit(context.Background(), domain.TradingSignal{Action: action, Symbol: "EURUSD", Volume: 1})
		assert.False(t, ok)
	}
	assert.Empty(t, term.Sent)

	failures := logs.FilterMessage("Order failed").All()
	require.Len(t, failures, 3)
	for _, e := range failures {
		assert.Equal(t, "unsupported_action", e.ContextMap()["reason"])
	}
}

func TestPlaceOrder_NotConnected(t *testing.T) {
	term := eurusdTerminal()
	term.Connected = false
	svc := newTestOrderService(term)

	_, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD", Volume: 1})
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.Empty(t, term.Sent)
	symbolsCalls, infoCalls := term.calls()
	assert.Zero(t, symbolsCalls)
	assert.Zero(t, infoCalls)
}

func TestPlaceOrder_InvalidSignal(t *testing.T) {
	svc := newTestOrderService(eurusdTerminal())
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD"})
	assert.ErrorIs(t, err, domain.ErrInvalidSignal)

	_, err = svc.PlaceOrder(ctx, domain.TradingSignal{Action: domain.ActionBuy, Symbol: " ", Volume: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidSignal)
}

func TestPlaceOrder_SymbolNotTradeable(t *testing.T) {
	t.Run("unknown symbol", func(t *testing.T) {
		term := eurusdTerminal()
		svc := newTestOrderService(term)

		_, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "ZZZ999", Volume: 1})
		assert.ErrorIs(t, err, domain.ErrSymbolNotTradeable)
		assert.Empty(t, term.Sent)
	})

	t.Run("hidden symbol selected", func(t *testing.T) {
		term := eurusdTerminal()
		term.Infos["EURUSD"].Visible = false
		svc := newTestOrderService(term)

		_, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD", Volume: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, term.SelectCalls)
		assert.Len(t, term.Sent, 1)
	})

	t.Run("hidden symbol cannot be selected", func(t *testing.T) {
		term := eurusdTerminal()
		term.Infos["EURUSD"].Visible = false
		term.SelectOK = false
		svc := newTestOrderService(term)

		_, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD", Volume: 1})
		assert.ErrorIs(t, err, domain.ErrSymbolNotTradeable)
		assert.Empty(t, term.Sent)
	})

	t.Run("metadata transport error", func(t *testing.T) {
		term := eurusdTerminal()
		term.InfoErr = errors.New("connection reset")
		svc := newTestOrderService(term)

		_, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD", Volume: 1})
		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.Empty(t, term.Sent)
	})
}

func TestPlaceOrder_NoTick(t *testing.T) {
	term := eurusdTerminal()
	delete(term.Ticks, "EURUSD")
	svc := newTestOrderService(term)

	_, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{Action: domain.ActionSell, Symbol: "EURUSD", Volume: 1})
	assert.ErrorIs(t, err, domain.ErrPricing)
	assert.Empty(t, term.Sent)
}

func TestPlaceOrder_BrokerRejection(t *testing.T) {
	term := eurusdTerminal()
	term.SendFunc = func(req *domain.OrderRequest) (*domain.OrderResult, error) {
		return &domain.OrderResult{Retcode: 10019, Comment: "No money"}, nil
	}
	svc := newTestOrderService(term)

	res, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD", Volume: 1})
	assert.ErrorIs(t, err, domain.ErrBrokerRejection)
	assert.Contains(t, err.Error(), "10019")
	assert.Contains(t, err.Error(), "No money")
	require.NotNil(t, res)
	assert.False(t, res.Done())
}

func TestPlaceOrder_PartialFillIsFailure(t *testing.T) {
	term := eurusdTerminal()
	term.SendFunc = func(req *domain.OrderRequest) (*domain.OrderResult, error) {
		return &domain.OrderResult{Retcode: 10010, Comment: "Partial"}, nil
	}
	svc := newTestOrderService(term)

	assert.False(t, svc.Submit(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD", Volume: 1}))
}

func TestPlaceOrder_TransportError(t *testing.T) {
	term := eurusdTerminal()
	term.SendFunc = func(req *domain.OrderRequest) (*domain.OrderResult, error) {
		return nil, errors.New("gateway timeout")
	}
	svc := newTestOrderService(term)

	_, err := svc.PlaceOrder(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD", Volume: 1})
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, "transport", FailureReason(err))
}

func TestPlaceOrder_SerializesSubmissions(t *testing.T) {
	term := eurusdTerminal()
	svc := newTestOrderService(term)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Submit(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD", Volume: 0.01})
		}()
	}
	wg.Wait()

	assert.Len(t, term.Sent, 16)
	assert.Equal(t, int32(1), term.maxInFlight)
}

func TestOpenPositions_WaitsForInFlightOrder(t *testing.T) {
	term := eurusdTerminal()
	release := make(chan struct{})
	sending := make(chan struct{})
	term.SendFunc = func(req *domain.OrderRequest) (*domain.OrderResult, error) {
		close(sending)
		<-release
		return &domain.OrderResult{Retcode: domain.RetcodeDone}, nil
	}
	svc := newTestOrderService(term)

	go svc.Submit(context.Background(), domain.TradingSignal{Action: domain.ActionBuy, Symbol: "EURUSD", Volume: 0.1})
	<-sending

	listed := make(chan struct{})
	go func() {
		_, _ = svc.OpenPositions(context.Background())
		close(listed)
	}()

	select {
	case <-listed:
		t.Fatal("positions listed while an order was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-listed:
	case <-time.After(2 * time.Second):
		t.Fatal("positions never listed")
	}
	term.mu.Lock()
	defer term.mu.Unlock()
	assert.Equal(t, 1, term.PositionsCalls)
}

func TestClosePositions_NoPositions(t *testing.T) {
	term := eurusdTerminal()
	svc := newTestOrderService(term)

	assert.True(t, svc.ClosePositions(context.Background(), ""))
	assert.Empty(t, term.Sent)
	assert.Equal(t, 1, term.PositionsCalls)
}

func TestClosePositions_ReversesEachPosition(t *testing.T) {
	term := eurusdTerminal()
	term.Open = []domain.Position{
		{Ticket: 101, Symbol: "EURUSD", Type: domain.OrderTypeBuy, Volume: 0.3},
		{Ticket: 102, Symbol: "XAUUSDm", Type: domain.OrderTypeSell, Volume: 0.1},
	}
	svc := newTestOrderService(term)

	report, err := svc.CloseAll(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Found)
	assert.Equal(t, 2, report.Closed)
	require.Len(t, term.Sent, 2)

	buyClose := term.Sent[0]
	assert.Equal(t, domain.OrderTypeSell, buyClose.Type)
	assert.Equal(t, 1.1000, buyClose.Price)
	assert.Equal(t, uint64(101), buyClose.Position)
	assert.Equal(t, 0.3, buyClose.Volume)
	assert.Equal(t, domain.TradeActionDeal, buyClose.Action)
	assert.Equal(t, domain.AutoCloseComment, buyClose.Comment)

	sellClose := term.Sent[1]
	assert.Equal(t, domain.OrderTypeBuy, sellClose.Type)
	assert.Equal(t, 2400.40, sellClose.Price)
	assert.Equal(t, uint64(102), sellClose.Position)
}

func TestClosePositions_OneFailureDoesNotAbortBatch(t *testing.T) {
	term := eurusdTerminal()
	term.Open = []domain.Position{
		{Ticket: 1, Symbol: "EURUSD", Type: domain.OrderTypeBuy, Volume: 1},
		{Ticket: 2, Symbol: "EURUSD", Type: domain.OrderTypeBuy, Volume: 1},
		{Ticket: 3, Symbol: "EURUSD", Type: domain.OrderTypeSell, Volume: 1},
	}
	term.SendFunc = func(req *domain.OrderRequest) (*domain.OrderResult, error) {
		if req.Position == 2 {
			return &domain.OrderResult{Retcode: 10004, Comment: "Requote"}, nil
		}
		return &domain.OrderResult{Retcode: domain.RetcodeDone}, nil
	}
	svc := newTestOrderService(term)

	assert.True(t, svc.ClosePositions(context.Background(), ""))
	assert.Len(t, term.Sent, 3)

	term.Sent = nil
	report, err := svc.CloseAll(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Closed)
	assert.Equal(t, []uint64{2}, report.FailedTickets)
}

func TestClosePositions_MissingTickContinues(t *testing.T) {
	term := eurusdTerminal()
	term.Open = []domain.Position{
		{Ticket: 1, Symbol: "GBPUSD", Type: domain.OrderTypeBuy, Volume: 1},
		{Ticket: 2, Symbol: "EURUSD", Type: domain.OrderTypeBuy, Volume: 1},
	}
	svc := newTestOrderService(term)

	report, err := svc.CloseAll(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Closed)
	assert.Equal(t, []uint64{1}, report.FailedTickets)
	require.Len(t, term.Sent, 1)
	assert.Equal(t, uint64(2), term.Sent[0].Position)
}

func TestClosePositions_ResolvesSymbolFilter(t *testing.T) {
	term := eurusdTerminal()
	term.Open = []domain.Position{
		{Ticket: 7, Symbol: "XAUUSDm", Type: domain.OrderTypeBuy, Volume: 0.2},
		{Ticket: 8, Symbol: "EURUSD", Type: domain.OrderTypeBuy, Volume: 0.2},
	}
	svc := newTestOrderService(term)

	assert.True(t, svc.ClosePositions(context.Background(), "XAUUSD"))
	assert.Equal(t, "XAUUSDm", term.PositionsArg)
	require.Len(t, term.Sent, 1)
	assert.Equal(t, uint64(7), term.Sent[0].Position)
}

func TestClosePositions_Failures(t *testing.T) {
	term := eurusdTerminal()
	term.PosErr = errors.New("boom")
	svc := newTestOrderService(term)
	assert.False(t, svc.ClosePositions(context.Background(), ""))

	term = eurusdTerminal()
	term.Connected = false
	svc = newTestOrderService(term)
	_, err := svc.CloseAll(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.Zero(t, term.PositionsCalls)
}

func TestSymbolReport(t *testing.T) {
	term := eurusdTerminal()
	term.Infos["XAUUSDm"].Description = "Gold vs US Dollar"
	svc := newTestOrderService(term)

	report, err := svc.SymbolReport(context.Background(), "XAUUSD")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "XAUUSD", report.Requested)
	assert.Equal(t, "XAUUSDm", report.Symbol)
	assert.Equal(t, StrategyNormalized, report.Strategy)
	assert.Equal(t, "Gold vs US Dollar", report.Info.Description)

	report, err = svc.SymbolReport(context.Background(), "ZZZ999")
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "", FailureReason(nil))
	assert.Equal(t, "pricing", FailureReason(domain.ErrPricing))
	assert.Equal(t, "unknown", FailureReason(errors.New("other")))
}
