package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
)

// ExecutorConfig bounds the retry and fill-poll behaviour. Retries use
// a small fixed count and a fixed delay, never unbounded backoff.
type ExecutorConfig struct {
	MaxRetries    int
	RetryDelay    time.Duration
	FillPollDelay time.Duration
}

// TradeExecutor submits orders to the broker. Exit submissions are
// retried; after submission a single status poll tries to capture the
// realized fill price.
type TradeExecutor struct {
	broker domain.Broker
	logger *zap.Logger
	cfg    ExecutorConfig

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewTradeExecutor(broker domain.Broker, logger *zap.Logger, cfg ExecutorConfig) *TradeExecutor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &TradeExecutor{broker: broker, logger: logger, cfg: cfg, sleep: time.Sleep}
}

// SubmitEntry places a market order opening a position. Entries are not
// retried: a failed entry is simply a missed signal, the next
// invocation will see a fresh one.
func (e *TradeExecutor) SubmitEntry(ctx context.Context, signal *domain.Signal) (*domain.Order, error) {
	order, err := e.broker.SubmitOrder(ctx, &domain.OrderRequest{
		Symbol:      domain.NormalizeSymbol(signal.Symbol),
		Quantity:    signal.Quantity,
		Side:        domain.SideForOpening(signal.Side),
		Type:        domain.OrderMarket,
		TimeInForce: "day",
	})
	if err != nil {
		return nil, fmt.Errorf("entry order for %s: %w", signal.Symbol, err)
	}
	e.logger.Info("entry order submitted",
		zap.String("symbol", signal.Symbol),
		zap.String("side", string(signal.Side)),
		zap.Int64("quantity", signal.Quantity),
		zap.String("order_id", order.ID))
	return order, nil
}

// ClosePosition flattens a broker position with a market order, sized
// at the full broker-reported quantity. Retried up to MaxRetries with a
// fixed delay between attempts.
func (e *TradeExecutor) ClosePosition(ctx context.Context, pos *domain.Position) (*domain.Order, error) {
	req := &domain.OrderRequest{
		Symbol:      domain.NormalizeSymbol(pos.Symbol),
		Quantity:    pos.AbsQuantity(),
		Side:        domain.SideForClosing(pos.Side),
		Type:        domain.OrderMarket,
		TimeInForce: "day",
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		order, err := e.broker.SubmitOrder(ctx, req)
		if err == nil {
			e.logger.Info("exit order submitted",
				zap.String("symbol", pos.Symbol),
				zap.String("side", string(req.Side)),
				zap.Int64("quantity", req.Quantity),
				zap.String("order_id", order.ID),
				zap.Int("attempt", attempt))
			return order, nil
		}
		lastErr = err
		e.logger.Warn("exit order attempt failed",
			zap.String("symbol", pos.Symbol),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", e.cfg.MaxRetries),
			zap.Error(err))
		if attempt < e.cfg.MaxRetries {
			e.sleep(e.cfg.RetryDelay)
		}
	}
	return nil, fmt.Errorf("exit order for %s failed after %d attempts: %w", pos.Symbol, e.cfg.MaxRetries, lastErr)
}

// PollFill waits briefly, then polls the order once. It returns the
// fill price and true if that single poll observed a fill; otherwise
// the realized price is unknown and must be reported as such, never
// guessed.
func (e *TradeExecutor) PollFill(ctx context.Context, orderID string) (float64, bool) {
	e.sleep(e.cfg.FillPollDelay)

	order, err := e.broker.GetOrder(ctx, orderID)
	if err != nil {
		e.logger.Warn("fill poll failed", zap.String("order_id", orderID), zap.Error(err))
		return 0, false
	}
	if !order.Filled() {
		return 0, false
	}
	return order.FilledAvgPrice, true
}
