package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vitos/signal_bridge/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router   *gin.Engine
	server   *http.Server
	orders   *usecase.OrderService
	resolver *usecase.SymbolResolver
	logger   *zap.Logger
}

func NewServer(
	addr string,
	orders *usecase.OrderService,
	resolver *usecase.SymbolResolver,
	debug bool,
	logger *zap.Logger,
) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:   gin.New(),
		orders:   orders,
		resolver: resolver,
		logger:   logger,
	}
	s.router.Use(requestID(), accessLog(logger), recovery(logger))
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// Webhook
	s.router.POST("/trade", s.handleTrade)

	// Status
	s.router.GET("/health", s.handleHealth)
	s.router.HEAD("/health", s.handleHealth)

	// Positions
	s.router.GET("/positions", s.handlePositions)

	// Symbols
	s.router.GET("/symbols/cache", s.handleCacheStats)
	s.router.DELETE("/symbols/cache", s.handleClearCache)
	s.router.POST("/symbols/refresh", s.handleRefreshSymbols)
	s.router.GET("/symbols/:symbol", s.handleSymbol)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
