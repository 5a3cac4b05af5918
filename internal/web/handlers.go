package web

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	open, err := s.broker.IsMarketOpen(r.Context())
	if err != nil {
		s.logger.Error("failed to read market clock", zap.Error(err))
		http.Error(w, "broker unavailable", http.StatusBadGateway)
		return
	}
	account, err := s.broker.GetAccount(r.Context())
	if err != nil {
		s.logger.Error("failed to read account", zap.Error(err))
		http.Error(w, "broker unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, s.logger, map[string]any{
		"market_open":  open,
		"equity":       account.Equity,
		"cash":         account.Cash,
		"buying_power": account.BuyingPower,
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.broker.GetPositions(r.Context())
	if err != nil {
		s.logger.Error("failed to list positions", zap.Error(err))
		http.Error(w, "broker unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, s.logger, positions)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.store.ListSymbols(r.Context())
	if err != nil {
		s.logger.Error("failed to list stored symbols", zap.Error(err))
		http.Error(w, "ledger unavailable", http.StatusBadGateway)
		return
	}

	levels := make([]*domain.PositionLevels, 0, len(symbols))
	for _, symbol := range symbols {
		if l := s.store.GetLevels(r.Context(), symbol); l != nil {
			levels = append(levels, l)
		}
	}
	writeJSON(w, s.logger, levels)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to compute stats", zap.Error(err))
		http.Error(w, "ledger unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, s.logger, stats)
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	result, err := s.monitor.EmergencyStop(r.Context())
	if err != nil {
		s.logger.Error("emergency stop refused", zap.Error(err))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, s.logger, result)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
