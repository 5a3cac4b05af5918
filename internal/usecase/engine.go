package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
	"github.com/markow/stock_trade_guard/internal/metrics"
)

// Engine runs one stateless invocation of the trading loop. Exits are
// evaluated before new entries: account equity and buying power are
// read once per run and must already reflect capital freed by exits
// when new entries are sized.
type Engine struct {
	store    *PositionStore
	journal  *TradeJournal
	gate     *TradeGate
	monitor  *ExitMonitor
	executor *TradeExecutor
	signals  SignalSource
	broker   domain.Broker
	clock    domain.Clock
	logger   *zap.Logger
}

func NewEngine(
	store *PositionStore,
	journal *TradeJournal,
	gate *TradeGate,
	monitor *ExitMonitor,
	executor *TradeExecutor,
	signals SignalSource,
	broker domain.Broker,
	clock domain.Clock,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:    store,
		journal:  journal,
		gate:     gate,
		monitor:  monitor,
		executor: executor,
		signals:  signals,
		broker:   broker,
		clock:    clock,
		logger:   logger,
	}
}

// RunInvocation performs one full pass: market-open check, store
// preload, exit sweep, then gated entries for each candidate signal.
// Candidates are evaluated sequentially; nothing carries over to the
// next invocation except what was written to the ledger.
func (e *Engine) RunInvocation(ctx context.Context) *domain.InvocationResult {
	result := &domain.InvocationResult{StartedAt: e.clock.Now()}

	open, err := e.broker.IsMarketOpen(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("market clock unavailable: %v", err))
		return result
	}
	result.MarketOpen = open
	if !open {
		e.logger.Info("market closed, skipping invocation")
		return result
	}

	e.store.Preload(ctx)
	result.Monitor = e.monitor.Run(ctx)

	candidates, err := e.signals.Candidates(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("signal source failed: %v", err))
		return result
	}

	for _, signal := range candidates {
		result.Trades = append(result.Trades, e.processSignal(ctx, signal))
	}
	return result
}

func (e *Engine) processSignal(ctx context.Context, signal *domain.Signal) domain.TradeResult {
	symbol := domain.NormalizeSymbol(signal.Symbol)
	trade := domain.TradeResult{Symbol: symbol, Side: signal.Side}

	gate := e.gate.Validate(ctx, &TradeRequest{
		Symbol:         symbol,
		Side:           signal.Side,
		Quantity:       signal.Quantity,
		Price:          signal.Price,
		Strategy:       signal.Strategy,
		SignalStrength: signal.Confidence,
	})
	if !gate.CanTrade {
		trade.Status = domain.TradeSkipped
		trade.Reasons = gate.Reasons
		metrics.IncTrade(string(domain.TradeSkipped))
		e.logger.Info("signal rejected",
			zap.String("symbol", symbol), zap.Strings("reasons", gate.Reasons))
		return trade
	}

	// Signal strength is recorded for every submitted signal, before
	// the order goes out, so a failed submission still raises the bar
	// for the next attempt.
	if err := e.journal.RecordSignal(ctx, &domain.SignalStrengthRecord{
		Symbol:   symbol,
		Side:     signal.Side,
		Strategy: signal.Strategy,
		Strength: signal.Confidence,
	}); err != nil {
		trade.Reasons = append(trade.Reasons, fmt.Sprintf("signal record failed: %v", err))
	}

	order, err := e.executor.SubmitEntry(ctx, signal)
	if err != nil {
		trade.Status = domain.TradeFailed
		trade.Reasons = append(trade.Reasons, err.Error())
		metrics.IncTrade(string(domain.TradeFailed))
		return trade
	}
	trade.Status = domain.TradeExecuted
	trade.OrderID = order.ID
	metrics.IncTrade(string(domain.TradeExecuted))

	if err := e.journal.RecordTrade(ctx, &domain.TradeState{
		Symbol:   symbol,
		Side:     signal.Side,
		Strategy: signal.Strategy,
		Quantity: signal.Quantity,
		Price:    signal.Price,
		OrderID:  order.ID,
	}); err != nil {
		trade.Reasons = append(trade.Reasons, fmt.Sprintf("trade record failed: %v", err))
	}

	if signal.StopLoss > 0 || signal.TakeProfit > 0 {
		stored := e.store.StoreLevels(ctx, &domain.PositionLevels{
			Symbol:     symbol,
			StopLoss:   signal.StopLoss,
			TakeProfit: signal.TakeProfit,
			EntryPrice: signal.Price,
			Side:       signal.Side,
			Quantity:   signal.Quantity,
			Strategy:   signal.Strategy,
			OrderID:    order.ID,
		})
		if !stored {
			// The order is live but nothing will monitor it. Surfaced
			// for operator visibility, never silently dropped.
			trade.Unprotected = true
			trade.Reasons = append(trade.Reasons, "executed but exit levels were not persisted")
			e.logger.Error("trade executed without stored exit protection",
				zap.String("symbol", symbol), zap.String("order_id", order.ID))
		}
	}
	return trade
}
