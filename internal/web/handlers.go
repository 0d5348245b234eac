package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vitos/signal_bridge/internal/domain"
	"go.uber.org/zap"
)

func statusOK(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": msg})
}

func statusFailed(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": msg})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// signalFromPayload validates a webhook body and builds the signal it
// describes. The returned action may be one the translator does not support.
func signalFromPayload(p *tradePayload) (domain.TradingSignal, error) {
	sig := domain.TradingSignal{
		Action: domain.ParseAction(p.text("action")),
		Symbol: p.text("symbol"),
	}
	if sig.Symbol == "" {
		return sig, payloadError("Missing required field: symbol")
	}

	volume, ok, err := p.number("volume")
	if err != nil {
		return sig, payloadError("Invalid volume value")
	}
	if !ok {
		return sig, payloadError("Missing required field: volume")
	}
	sig.Volume = volume.InexactFloat64()

	if sig.TakeProfit, err = p.optionalNumber("take_profit/tp", "tp", "take_profit"); err != nil {
		return sig, err
	}
	if sig.StopLoss, err = p.optionalNumber("stop_loss/sl", "sl", "stop_loss"); err != nil {
		return sig, err
	}

	if sig.Action.IsPending() {
		price, ok, err := p.number("price")
		if err != nil {
			return sig, payloadError("Invalid price value")
		}
		if !ok {
			return sig, payloadError("Missing required field for pending order: price")
		}
		sig.Price = price.InexactFloat64()
	}
	return sig, nil
}

func (s *Server) handleTrade(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, payloadError("Invalid JSON"))
		return
	}
	payload, err := parseTradePayload(body)
	if err != nil {
		badRequest(c, err)
		return
	}
	s.logger.Info("Received webhook", zap.ByteString("payload", body))

	sig, err := signalFromPayload(payload)
	if err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	switch {
	case sig.Action.IsMarket():
		if s.orders.Submit(ctx, sig) {
			statusOK(c, "Market order placed")
			return
		}
		statusFailed(c, "Failed to place market order")
	case sig.Action.IsPending():
		if s.orders.Submit(ctx, sig) {
			statusOK(c, "Pending order placed")
			return
		}
		statusFailed(c, "Failed to place pending order")
	case sig.Action == domain.ActionClose:
		if s.orders.ClosePositions(ctx, sig.Symbol) {
			statusOK(c, "Close order executed")
			return
		}
		statusFailed(c, "Failed to close position")
	default:
		msg := fmt.Sprintf("Unknown or unsupported action: '%s'", payload.text("action"))
		s.logger.Error(msg)
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"mt5_connected": s.orders.IsConnected(),
	})
}

type positionView struct {
	Ticket    uint64  `json:"ticket"`
	Symbol    string  `json:"symbol"`
	Type      string  `json:"type"`
	Volume    float64 `json:"volume"`
	Profit    float64 `json:"profit"`
	OpenPrice float64 `json:"open_price"`
}

func (s *Server) handlePositions(c *gin.Context) {
	positions, err := s.orders.OpenPositions(c.Request.Context())
	if errors.Is(err, domain.ErrNotConnected) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "MT5 not connected"})
		return
	}
	if err != nil {
		s.logger.Error("Failed to get positions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to get positions: %v", err)})
		return
	}

	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		views = append(views, positionView{
			Ticket:    p.Ticket,
			Symbol:    p.Symbol,
			Type:      p.Side(),
			Volume:    p.Volume,
			Profit:    p.Profit,
			OpenPrice: p.PriceOpen,
		})
	}
	c.JSON(http.StatusOK, gin.H{"positions": views})
}

func (s *Server) handleSymbol(c *gin.Context) {
	symbol := c.Param("symbol")
	report, err := s.orders.SymbolReport(c.Request.Context(), symbol)
	if err != nil {
		s.logger.Error("Symbol lookup failed", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Symbol %s not available on terminal", symbol)})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.resolver.CacheStats())
}

func (s *Server) handleClearCache(c *gin.Context) {
	s.resolver.ClearCache()
	statusOK(c, "Symbol cache cleared")
}

func (s *Server) handleRefreshSymbols(c *gin.Context) {
	if err := s.resolver.RefreshUniverse(c.Request.Context()); err != nil {
		s.logger.Error("Symbol refresh failed", zap.Error(err))
		statusFailed(c, "Failed to refresh symbols")
		return
	}
	c.JSON(http.StatusOK, s.resolver.CacheStats())
}
