package usecase

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
)

// TradeJournal records trade and signal history in the ledger. The
// ledger keys are chosen so that "the most recent row" is a single
// keyed read: trade state is keyed by symbol, signal strength by
// symbol|side. Writes overwrite in place (last-writer-wins).
type TradeJournal struct {
	ledger domain.Ledger
	clock  domain.Clock
	logger *zap.Logger
}

func NewTradeJournal(ledger domain.Ledger, clock domain.Clock, logger *zap.Logger) *TradeJournal {
	return &TradeJournal{ledger: ledger, clock: clock, logger: logger}
}

// LastTrade returns the most recent trade for a symbol, or nil. Read
// failures are treated as no history (fail-open).
func (j *TradeJournal) LastTrade(ctx context.Context, symbol string) *domain.TradeState {
	symbol = domain.NormalizeSymbol(symbol)
	row, err := j.ledger.Get(ctx, domain.TableTradeState, symbol)
	if err != nil {
		j.logger.Warn("trade state read failed, treating as no history",
			zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
	if row == nil {
		return nil
	}
	return &domain.TradeState{
		Symbol:    symbol,
		Side:      domain.Side(row["side"]),
		Strategy:  row["strategy"],
		Quantity:  parseInt(row["quantity"]),
		Price:     parseFloat(row["price"]),
		OrderID:   row["order_id"],
		Timestamp: parseTime(row["timestamp"]),
	}
}

// RecordTrade stamps and persists the trade state for a symbol.
func (j *TradeJournal) RecordTrade(ctx context.Context, trade *domain.TradeState) error {
	trade.Symbol = domain.NormalizeSymbol(trade.Symbol)
	if trade.Timestamp.IsZero() {
		trade.Timestamp = j.clock.Now()
	}
	row := domain.Row{
		"symbol":    trade.Symbol,
		"side":      string(trade.Side),
		"strategy":  trade.Strategy,
		"quantity":  strconv.FormatInt(trade.Quantity, 10),
		"price":     formatFloat(trade.Price),
		"order_id":  trade.OrderID,
		"timestamp": trade.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if err := j.ledger.Put(ctx, domain.TableTradeState, trade.Symbol, row); err != nil {
		j.logger.Error("failed to record trade state",
			zap.String("symbol", trade.Symbol), zap.Error(err))
		return err
	}
	return nil
}

// LastSignalStrength returns the last recorded confidence for a
// (symbol, side) pair, or nil when there is no prior signal.
func (j *TradeJournal) LastSignalStrength(ctx context.Context, symbol string, side domain.Side) *domain.SignalStrengthRecord {
	symbol = domain.NormalizeSymbol(symbol)
	row, err := j.ledger.Get(ctx, domain.TableSignalStrength, signalKey(symbol, side))
	if err != nil {
		j.logger.Warn("signal strength read failed, treating as first signal",
			zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
	if row == nil {
		return nil
	}
	return &domain.SignalStrengthRecord{
		Symbol:     symbol,
		Side:       side,
		Strategy:   row["strategy"],
		Strength:   parseFloat(row["strength"]),
		OrderID:    row["order_id"],
		RecordedAt: parseTime(row["recorded_at"]),
	}
}

// RecordSignal persists the signal confidence for a (symbol, side)
// pair. Recorded for every submitted signal, not just executed trades.
func (j *TradeJournal) RecordSignal(ctx context.Context, rec *domain.SignalStrengthRecord) error {
	rec.Symbol = domain.NormalizeSymbol(rec.Symbol)
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = j.clock.Now()
	}
	row := domain.Row{
		"symbol":      rec.Symbol,
		"side":        string(rec.Side),
		"strategy":    rec.Strategy,
		"strength":    formatFloat(rec.Strength),
		"order_id":    rec.OrderID,
		"recorded_at": rec.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := j.ledger.Put(ctx, domain.TableSignalStrength, signalKey(rec.Symbol, rec.Side), row); err != nil {
		j.logger.Error("failed to record signal strength",
			zap.String("symbol", rec.Symbol), zap.Error(err))
		return err
	}
	return nil
}

func signalKey(symbol string, side domain.Side) string {
	return symbol + "|" + string(side)
}
