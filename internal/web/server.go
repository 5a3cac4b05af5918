package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
	"github.com/markow/stock_trade_guard/internal/usecase"
)

// Server exposes the operational JSON API. The dashboard UI is out of
// scope; this is a thin status and ops surface.
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	store   *usecase.PositionStore
	monitor *usecase.ExitMonitor
	broker  domain.Broker
	logger  *zap.Logger
}

func NewServer(
	port int,
	store *usecase.PositionStore,
	monitor *usecase.ExitMonitor,
	broker domain.Broker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		store:   store,
		monitor: monitor,
		broker:  broker,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /positions", s.handlePositions)
	s.router.HandleFunc("GET /levels", s.handleLevels)
	s.router.HandleFunc("GET /stats", s.handleStats)
	s.router.HandleFunc("POST /emergency-stop", s.handleEmergencyStop)
	s.router.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) Start() error {
	s.logger.Info("web server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
