package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
	"github.com/markow/stock_trade_guard/internal/metrics"
)

// MonitorConfig holds the exit evaluation knobs.
type MonitorConfig struct {
	// TriggerBuffer is the confirmation margin: the quote must cross a
	// level by this fraction before the exit fires. It filters bid/ask
	// spread noise that oscillates right at the nominal level.
	TriggerBuffer float64
	// EmergencyStopEnabled gates the operator flatten-everything path.
	EmergencyStopEnabled bool
}

// ExitMonitor reconciles stored exit levels against live broker
// positions and fires exit orders when a level is crossed. Positions
// are processed one at a time: each exit is a stateful sequence
// (quote, evaluate, submit, poll, delete) over a store with no
// compare-and-swap, so interleaving would risk lost updates.
type ExitMonitor struct {
	store    *PositionStore
	broker   domain.Broker
	quotes   domain.QuoteSource
	executor *TradeExecutor
	logger   *zap.Logger
	cfg      MonitorConfig
}

func NewExitMonitor(store *PositionStore, broker domain.Broker, quotes domain.QuoteSource, executor *TradeExecutor, logger *zap.Logger, cfg MonitorConfig) *ExitMonitor {
	if quotes == nil {
		quotes = broker
	}
	return &ExitMonitor{
		store:    store,
		broker:   broker,
		quotes:   quotes,
		executor: executor,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run executes one monitoring sweep: the per-position exit loop, then
// the orphan reconciliation pass. Failures on one position never abort
// the rest; they are collected into the result.
func (m *ExitMonitor) Run(ctx context.Context) *domain.MonitorResult {
	result := &domain.MonitorResult{}

	positions, err := m.broker.GetPositions(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to fetch positions: %v", err))
		return result
	}

	held := make(map[string]bool, len(positions))
	for _, pos := range positions {
		symbol := domain.NormalizeSymbol(pos.Symbol)
		held[symbol] = true
		result.Checked++

		if err := m.checkPosition(ctx, pos, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", symbol, err))
		}
	}

	result.Cleaned = m.reconcile(ctx, held, result)
	metrics.ObserveSweep(result.Checked, result.Cleaned)
	return result
}

func (m *ExitMonitor) checkPosition(ctx context.Context, pos *domain.Position, result *domain.MonitorResult) error {
	symbol := domain.NormalizeSymbol(pos.Symbol)

	levels := m.store.GetLevels(ctx, symbol)
	if levels == nil {
		// Held but nothing protects it. Left unmonitored; whether to
		// re-protect automatically is an operator decision.
		m.logger.Warn("held position has no stored exit levels",
			zap.String("symbol", symbol),
			zap.Int64("quantity", pos.AbsQuantity()))
		result.Unprotected = append(result.Unprotected, symbol)
		return nil
	}

	quote, err := m.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return fmt.Errorf("quote fetch: %w", err)
	}

	reason, triggered := EvaluateExit(levels, pos.Side, quote, m.cfg.TriggerBuffer)
	if !triggered {
		return nil
	}

	m.logger.Info("exit triggered",
		zap.String("symbol", symbol),
		zap.String("side", string(pos.Side)),
		zap.String("reason", string(reason)),
		zap.Float64("bid", quote.Bid),
		zap.Float64("ask", quote.Ask),
		zap.Float64("stop_loss", levels.StopLoss),
		zap.Float64("take_profit", levels.TakeProfit))

	exit := domain.ExitResult{
		Symbol:   symbol,
		Side:     pos.Side,
		Reason:   reason,
		Quantity: pos.AbsQuantity(),
	}

	order, err := m.executor.ClosePosition(ctx, pos)
	if err != nil {
		// Levels stay in place: the next invocation retries the exit
		// from scratch. This is the sole recovery path for exit-side
		// failures.
		exit.Status = domain.TradeFailed
		result.Exits = append(result.Exits, exit)
		metrics.IncExit(string(reason), string(pos.Side), false)
		return err
	}
	exit.Status = domain.TradeExecuted
	exit.OrderID = order.ID

	if fill, ok := m.executor.PollFill(ctx, order.ID); ok {
		exit.FillPrice = fill
		pnl := realizedPnL(levels.EntryPrice, fill, pos.Side, pos.AbsQuantity())
		exit.RealizedPnL = &pnl
		m.logger.Info("exit filled",
			zap.String("symbol", symbol),
			zap.Float64("fill_price", fill),
			zap.Float64("realized_pnl", pnl))
	} else {
		m.logger.Info("exit fill not yet observed, realized pnl unknown",
			zap.String("symbol", symbol), zap.String("order_id", order.ID))
	}

	if !m.store.RemoveLevels(ctx, symbol) {
		// The order went out but the cleanup write failed; the next
		// invocation's reconciliation pass removes the orphan.
		m.logger.Warn("exit executed but level cleanup failed",
			zap.String("symbol", symbol))
	}

	result.Exits = append(result.Exits, exit)
	metrics.IncExit(string(reason), string(pos.Side), true)
	return nil
}

// reconcile deletes stored levels for symbols the broker no longer
// holds: positions closed manually, liquidated externally, or exits
// whose cleanup failed on a prior run.
func (m *ExitMonitor) reconcile(ctx context.Context, held map[string]bool, result *domain.MonitorResult) int {
	stored, err := m.store.ListSymbols(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reconciliation scan failed: %v", err))
		return 0
	}

	cleaned := 0
	for _, symbol := range stored {
		if held[symbol] {
			continue
		}
		if m.store.RemoveLevels(ctx, symbol) {
			m.logger.Info("removed orphaned exit levels", zap.String("symbol", symbol))
			cleaned++
		}
	}
	metrics.SetTrackedSymbols(len(stored) - cleaned)
	return cleaned
}

// EmergencyStop flattens every held position with market orders and
// wipes all stored levels. Operator-invoked only, and refused unless
// enabled in configuration. Per-symbol failures are collected, not
// fatal.
func (m *ExitMonitor) EmergencyStop(ctx context.Context) (*domain.EmergencyStopResult, error) {
	if !m.cfg.EmergencyStopEnabled {
		return nil, fmt.Errorf("emergency stop is disabled in configuration")
	}

	result := &domain.EmergencyStopResult{Failed: make(map[string]string)}

	positions, err := m.broker.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}

	for _, pos := range positions {
		symbol := domain.NormalizeSymbol(pos.Symbol)
		if _, err := m.executor.ClosePosition(ctx, pos); err != nil {
			result.Failed[symbol] = err.Error()
			continue
		}
		result.Closed = append(result.Closed, symbol)
		metrics.IncExit(string(domain.ExitEmergency), string(pos.Side), true)
	}

	stored, err := m.store.ListSymbols(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to enumerate stored levels: %w", err)
	}
	for _, symbol := range stored {
		if m.store.RemoveLevels(ctx, symbol) {
			result.LevelsWiped++
		}
	}

	m.logger.Warn("emergency stop completed",
		zap.Int("closed", len(result.Closed)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("levels_wiped", result.LevelsWiped))
	return result, nil
}

// EvaluateExit decides whether a quote has decisively crossed either
// stored level. The buffer is a confirmation margin: a long stop at 97
// with buffer 0.001 fires only once the bid is at or below 96.903, so
// spread noise sitting right at the level does not flap the trigger.
// Longs are evaluated against the bid (the exit is a sell), shorts
// against the ask.
func EvaluateExit(levels *domain.PositionLevels, side domain.Side, quote *domain.Quote, buffer float64) (domain.ExitReason, bool) {
	if side == domain.SideLong {
		price := quote.Bid
		if levels.StopLoss > 0 && price <= levels.StopLoss*(1-buffer) {
			return domain.ExitStopLoss, true
		}
		if levels.TakeProfit > 0 && price >= levels.TakeProfit*(1+buffer) {
			return domain.ExitTakeProfit, true
		}
		return "", false
	}

	price := quote.Ask
	if levels.StopLoss > 0 && price >= levels.StopLoss*(1+buffer) {
		return domain.ExitStopLoss, true
	}
	if levels.TakeProfit > 0 && price <= levels.TakeProfit*(1-buffer) {
		return domain.ExitTakeProfit, true
	}
	return "", false
}

func realizedPnL(entry, exit float64, side domain.Side, qty int64) float64 {
	if side == domain.SideLong {
		return (exit - entry) * float64(qty)
	}
	return (entry - exit) * float64(qty)
}
