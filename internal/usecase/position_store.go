package usecase

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
)

// DefaultLevelsTTL is the dead-man's-switch horizon for stored exit
// levels. A record older than this is treated as stale and discarded
// regardless of broker state.
const DefaultLevelsTTL = 24 * time.Hour

// PositionStore wraps the ledger with the exit-level domain operations.
// It holds a read-through index built once per invocation by Preload;
// the index is write-through and is never trusted across invocations
// (the process keeps no memory between runs, the ledger is the only
// source of truth).
type PositionStore struct {
	ledger domain.Ledger
	clock  domain.Clock
	logger *zap.Logger
	ttl    time.Duration

	mu      sync.Mutex
	index   map[string]domain.Row
	indexed bool
}

func NewPositionStore(ledger domain.Ledger, clock domain.Clock, logger *zap.Logger, ttl time.Duration) *PositionStore {
	if ttl <= 0 {
		ttl = DefaultLevelsTTL
	}
	return &PositionStore{
		ledger: ledger,
		clock:  clock,
		logger: logger,
		ttl:    ttl,
	}
}

// Preload scans the levels table once and builds the in-memory index,
// so per-symbol lookups during the sweep do not pay a full scan each.
// On failure the store falls back to per-key ledger reads.
func (s *PositionStore) Preload(ctx context.Context) {
	rows, err := s.ledger.ScanAll(ctx, domain.TablePositionLevels)
	if err != nil {
		s.logger.Warn("levels preload failed, falling back to per-key reads", zap.Error(err))
		return
	}

	index := make(map[string]domain.Row, len(rows))
	for _, row := range rows {
		index[domain.NormalizeSymbol(row["symbol"])] = row
	}

	s.mu.Lock()
	s.index = index
	s.indexed = true
	s.mu.Unlock()
}

// StoreLevels persists exit levels for a symbol, overwriting any live
// record in place. It stamps CreatedAt and ExpiresAt itself. Returns
// false when the record is invalid or the write failed; the caller must
// then treat the trade as executed but unprotected.
func (s *PositionStore) StoreLevels(ctx context.Context, levels *domain.PositionLevels) bool {
	if !levels.Valid() {
		s.logger.Error("rejecting levels with neither stop-loss nor take-profit",
			zap.String("symbol", levels.Symbol))
		return false
	}

	now := s.clock.Now()
	levels.Symbol = domain.NormalizeSymbol(levels.Symbol)
	levels.CreatedAt = now
	levels.ExpiresAt = now.Add(s.ttl)

	row := levelsToRow(levels)
	if err := s.ledger.Put(ctx, domain.TablePositionLevels, levels.Symbol, row); err != nil {
		s.logger.Error("failed to store exit levels",
			zap.String("symbol", levels.Symbol), zap.Error(err))
		return false
	}
	s.indexPut(levels.Symbol, row)

	s.logger.Info("stored exit levels",
		zap.String("symbol", levels.Symbol),
		zap.Float64("stop_loss", levels.StopLoss),
		zap.Float64("take_profit", levels.TakeProfit),
		zap.Time("expires_at", levels.ExpiresAt))
	return true
}

// GetLevels returns the live record for a symbol, or nil. An expired
// record is treated as absent and deleted as a side effect. Transport
// failures also return nil: the system prefers running without exit
// protection over blocking execution on a flaky store.
func (s *PositionStore) GetLevels(ctx context.Context, symbol string) *domain.PositionLevels {
	symbol = domain.NormalizeSymbol(symbol)

	row, ok := s.indexGet(symbol)
	if !ok {
		var err error
		row, err = s.ledger.Get(ctx, domain.TablePositionLevels, symbol)
		if err != nil {
			s.logger.Warn("levels read failed, treating as not found",
				zap.String("symbol", symbol), zap.Error(err))
			return nil
		}
	}
	if row == nil {
		return nil
	}

	levels := levelsFromRow(row)
	if levels.Expired(s.clock.Now()) {
		s.logger.Info("discarding expired exit levels",
			zap.String("symbol", symbol), zap.Time("expired_at", levels.ExpiresAt))
		s.RemoveLevels(ctx, symbol)
		return nil
	}
	return levels
}

// RemoveLevels deletes the record for a symbol. Idempotent: removing an
// absent record succeeds. Returns false only on transport failure.
func (s *PositionStore) RemoveLevels(ctx context.Context, symbol string) bool {
	symbol = domain.NormalizeSymbol(symbol)
	if err := s.ledger.Delete(ctx, domain.TablePositionLevels, symbol); err != nil {
		s.logger.Error("failed to remove exit levels",
			zap.String("symbol", symbol), zap.Error(err))
		return false
	}
	s.indexDelete(symbol)
	return true
}

// ListSymbols enumerates every symbol with a stored record, expired or
// not. Full scan; used by the reconciliation sweep, not the hot path.
func (s *PositionStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.ledger.ScanAll(ctx, domain.TablePositionLevels)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(rows))
	for _, row := range rows {
		symbols = append(symbols, domain.NormalizeSymbol(row["symbol"]))
	}
	return symbols, nil
}

// Stats aggregates the stored records for diagnostics.
func (s *PositionStore) Stats(ctx context.Context) (*domain.LevelsStats, error) {
	rows, err := s.ledger.ScanAll(ctx, domain.TablePositionLevels)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	stats := domain.NewLevelsStats()
	for _, row := range rows {
		levels := levelsFromRow(row)
		stats.Total++
		if levels.Expired(now) {
			stats.Expired++
		} else if levels.Valid() {
			stats.Valid++
		}
		stats.BySide[levels.Side]++
		if levels.Strategy != "" {
			stats.ByStrategy[levels.Strategy]++
		}
	}
	return stats, nil
}

func (s *PositionStore) indexGet(symbol string) (domain.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.indexed {
		return nil, false
	}
	row, ok := s.index[symbol]
	if !ok {
		// Indexed and absent is an authoritative miss.
		return nil, true
	}
	return row, true
}

func (s *PositionStore) indexPut(symbol string, row domain.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexed {
		s.index[symbol] = row
	}
}

func (s *PositionStore) indexDelete(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexed {
		delete(s.index, symbol)
	}
}

func levelsToRow(l *domain.PositionLevels) domain.Row {
	return domain.Row{
		"symbol":      l.Symbol,
		"stop_loss":   formatFloat(l.StopLoss),
		"take_profit": formatFloat(l.TakeProfit),
		"entry_price": formatFloat(l.EntryPrice),
		"side":        string(l.Side),
		"quantity":    strconv.FormatInt(l.Quantity, 10),
		"strategy":    l.Strategy,
		"order_id":    l.OrderID,
		"created_at":  l.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":  l.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
}

func levelsFromRow(row domain.Row) *domain.PositionLevels {
	return &domain.PositionLevels{
		Symbol:     domain.NormalizeSymbol(row["symbol"]),
		StopLoss:   parseFloat(row["stop_loss"]),
		TakeProfit: parseFloat(row["take_profit"]),
		EntryPrice: parseFloat(row["entry_price"]),
		Side:       domain.Side(row["side"]),
		Quantity:   parseInt(row["quantity"]),
		Strategy:   row["strategy"],
		OrderID:    row["order_id"],
		CreatedAt:  parseTime(row["created_at"]),
		ExpiresAt:  parseTime(row["expires_at"]),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
