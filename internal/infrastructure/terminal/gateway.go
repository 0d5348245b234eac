package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/vitos/signal_bridge/internal/domain"
	"go.uber.org/zap"
)

// Streamed quotes older than this are ignored in favour of a REST fetch.
const quoteMaxAge = 5 * time.Second

var errNotFound = errors.New("not found")

type GatewayConfig struct {
	BaseURL   string
	StreamURL string
	Login     int64
	Password  string
	Server    string
	Path      string
	Timeout   time.Duration
}

// GatewayAdapter talks to a MetaTrader 5 terminal through its HTTP gateway.
// Quotes come from the gateway's WebSocket stream when one is configured.
type GatewayAdapter struct {
	cfg    GatewayConfig
	client *http.Client
	quotes *QuoteStream
	logger *zap.Logger

	mu        sync.RWMutex
	token     string
	connected bool
}

func NewGatewayAdapter(cfg GatewayConfig, logger *zap.Logger) *GatewayAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	g := &GatewayAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
	if cfg.StreamURL != "" {
		g.quotes = NewQuoteStream(cfg.StreamURL, logger)
	}
	return g
}

// --- Connection ---

func (g *GatewayAdapter) Connect(ctx context.Context) error {
	payload := map[string]interface{}{
		"login":    g.cfg.Login,
		"password": g.cfg.Password,
		"server":   g.cfg.Server,
		"path":     g.cfg.Path,
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := g.sendRequest(ctx, http.MethodPost, "/api/v1/login", payload, &resp); err != nil {
		return fmt.Errorf("login to %s: %w", g.cfg.Server, err)
	}

	g.mu.Lock()
	g.token = resp.Token
	g.connected = true
	g.mu.Unlock()

	if g.quotes != nil {
		header := http.Header{}
		header.Set("Authorization", "Bearer "+resp.Token)
		if err := g.quotes.Connect(ctx, header); err != nil {
			g.logger.Warn("Quote stream unavailable, using REST ticks", zap.Error(err))
		}
	}

	g.logger.Info("Connected to MT5", zap.Int64("login", g.cfg.Login), zap.String("server", g.cfg.Server))
	return nil
}

func (g *GatewayAdapter) Disconnect(ctx context.Context) error {
	if g.quotes != nil {
		_ = g.quotes.Close()
	}
	err := g.sendRequest(ctx, http.MethodPost, "/api/v1/logout", nil, nil)

	g.mu.Lock()
	g.token = ""
	g.connected = false
	g.mu.Unlock()

	g.logger.Info("MT5 connection closed")
	return err
}

func (g *GatewayAdapter) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// --- REST API ---

func (g *GatewayAdapter) sendRequest(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	g.mu.RLock()
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	g.mu.RUnlock()

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("gateway error %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func symbolPath(name string, parts ...string) string {
	p := "/api/v1/symbols/" + url.PathEscape(name)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (g *GatewayAdapter) Symbols(ctx context.Context) ([]string, error) {
	var resp struct {
		Symbols []string `json:"symbols"`
	}
	if err := g.sendRequest(ctx, http.MethodGet, "/api/v1/symbols", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Symbols, nil
}

func (g *GatewayAdapter) SymbolInfo(ctx context.Context, name string) (*domain.SymbolInfo, error) {
	var info domain.SymbolInfo
	err := g.sendRequest(ctx, http.MethodGet, symbolPath(name), nil, &info)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (g *GatewayAdapter) SymbolTick(ctx context.Context, name string) (*domain.Tick, error) {
	if g.quotes != nil {
		if tick, ok := g.quotes.Latest(name, quoteMaxAge); ok {
			return tick, nil
		}
	}

	var raw wireTick
	err := g.sendRequest(ctx, http.MethodGet, symbolPath(name, "tick"), nil, &raw)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tick := raw.toDomain(name)
	return &tick, nil
}

func (g *GatewayAdapter) SelectSymbol(ctx context.Context, name string) (bool, error) {
	var resp struct {
		Selected bool `json:"selected"`
	}
	err := g.sendRequest(ctx, http.MethodPost, symbolPath(name, "select"), map[string]bool{"enable": true}, &resp)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if resp.Selected && g.quotes != nil {
		if err := g.quotes.Subscribe([]string{name}); err != nil {
			g.logger.Debug("Quote subscribe failed", zap.String("symbol", name), zap.Error(err))
		}
	}
	return resp.Selected, nil
}

func (g *GatewayAdapter) OrderSend(ctx context.Context, req *domain.OrderRequest) (*domain.OrderResult, error) {
	var result domain.OrderResult
	if err := g.sendRequest(ctx, http.MethodPost, "/api/v1/orders", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *GatewayAdapter) Positions(ctx context.Context, symbol string) ([]domain.Position, error) {
	path := "/api/v1/positions"
	if symbol != "" {
		path += "?symbol=" + url.QueryEscape(symbol)
	}
	var resp struct {
		Positions []domain.Position `json:"positions"`
	}
	if err := g.sendRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

func (g *GatewayAdapter) AccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	var info domain.AccountInfo
	if err := g.sendRequest(ctx, http.MethodGet, "/api/v1/account", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// wireTick is the gateway's tick payload, shared by REST and the stream.
type wireTick struct {
	Symbol  string  `json:"symbol"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	TimeMsc int64   `json:"time_msc"`
}

func (w wireTick) toDomain(fallbackSymbol string) domain.Tick {
	t := domain.Tick{Symbol: w.Symbol, Bid: w.Bid, Ask: w.Ask}
	if t.Symbol == "" {
		t.Symbol = fallbackSymbol
	}
	if w.TimeMsc > 0 {
		t.Time = time.UnixMilli(w.TimeMsc)
	}
	return t
}
