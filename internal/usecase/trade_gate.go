package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
	"github.com/markow/stock_trade_guard/internal/metrics"
)

// GateConfig holds the trade validation limits.
type GateConfig struct {
	// MinTimeBetweenTrades is the per-symbol cooldown.
	MinTimeBetweenTrades time.Duration
	// SignalImprovementRatio is the factor a new signal must beat the
	// last recorded strength by before scaling into an open position.
	SignalImprovementRatio float64
	// MaxPositionNotional is the absolute per-trade notional ceiling.
	MaxPositionNotional float64
	// MaxEquityFraction caps trade notional as a fraction of equity.
	MaxEquityFraction float64
}

// TradeRequest is one candidate trade presented to the gate.
type TradeRequest struct {
	Symbol         string
	Side           domain.Side
	Quantity       int64
	Price          float64
	Strategy       string
	SignalStrength float64
}

// TradeGate decides whether a new order may be submitted. All state it
// consults lives in the ledger (via the journal) or at the broker;
// nothing is remembered in-process between invocations.
type TradeGate struct {
	journal *TradeJournal
	broker  domain.Broker
	clock   domain.Clock
	logger  *zap.Logger
	cfg     GateConfig
}

func NewTradeGate(journal *TradeJournal, broker domain.Broker, clock domain.Clock, logger *zap.Logger, cfg GateConfig) *TradeGate {
	if cfg.SignalImprovementRatio <= 0 {
		cfg.SignalImprovementRatio = 1.3
	}
	return &TradeGate{journal: journal, broker: broker, clock: clock, logger: logger, cfg: cfg}
}

// Validate runs the checks in order, short-circuiting on the first
// failure: cooldown, duplicate/weak-signal suppression, notional and
// cash limits. Rejections are expected outcomes, returned as reasons.
func (g *TradeGate) Validate(ctx context.Context, req *TradeRequest) *domain.GateResult {
	result := &domain.GateResult{CanTrade: true}
	symbol := domain.NormalizeSymbol(req.Symbol)

	// 1. Per-symbol cooldown.
	if last := g.journal.LastTrade(ctx, symbol); last != nil {
		elapsed := g.clock.Now().Sub(last.Timestamp)
		if elapsed < g.cfg.MinTimeBetweenTrades {
			remaining := g.cfg.MinTimeBetweenTrades - elapsed
			result.CanTrade = false
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("cooldown active for %s: %s remaining", symbol, remaining.Round(time.Second)))
			result.Checks.CooldownRemaining = remaining
			result.Checks.BindingLimit = "cooldown"
			return result
		}
	}

	// 2. Weak-signal suppression, only when already holding the symbol.
	held, err := g.broker.GetPosition(ctx, symbol)
	if err != nil {
		g.logger.Warn("position lookup failed during validation, skipping signal check",
			zap.String("symbol", symbol), zap.Error(err))
	} else if held != nil && held.Quantity != 0 {
		if last := g.journal.LastSignalStrength(ctx, symbol, req.Side); last != nil {
			required := last.Strength * g.cfg.SignalImprovementRatio
			if req.SignalStrength <= required {
				result.CanTrade = false
				result.Reasons = append(result.Reasons,
					fmt.Sprintf("signal strength %.3f does not beat required %.3f (last %.3f x %.2f)",
						req.SignalStrength, required, last.Strength, g.cfg.SignalImprovementRatio))
				result.Checks.BindingLimit = "signal_strength"
				return result
			}
		}
	}

	// 3. Notional and risk limits.
	notional := float64(req.Quantity) * req.Price

	if g.cfg.MaxPositionNotional > 0 {
		result.Checks.NotionalHeadroom = g.cfg.MaxPositionNotional - notional
		if notional > g.cfg.MaxPositionNotional {
			result.CanTrade = false
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("notional %.2f exceeds ceiling %.2f", notional, g.cfg.MaxPositionNotional))
			result.Checks.BindingLimit = "max_notional"
			return result
		}
	}

	account, err := g.broker.GetAccount(ctx)
	if err != nil {
		// Without an account snapshot the risk checks cannot run; this
		// is the one validation step that fails closed.
		result.CanTrade = false
		result.Reasons = append(result.Reasons, fmt.Sprintf("account unavailable: %v", err))
		result.Checks.BindingLimit = "account"
		return result
	}
	metrics.SetAccountEquity(account.Equity)

	if g.cfg.MaxEquityFraction > 0 {
		maxNotional := account.Equity * g.cfg.MaxEquityFraction
		result.Checks.EquityHeadroom = maxNotional - notional
		if notional > maxNotional {
			result.CanTrade = false
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("notional %.2f exceeds %.0f%% of equity (%.2f)",
					notional, g.cfg.MaxEquityFraction*100, maxNotional))
			result.Checks.BindingLimit = "equity_fraction"
			return result
		}
	}

	if req.Side == domain.SideLong {
		result.Checks.CashHeadroom = account.Cash - notional
		if notional > account.Cash {
			result.CanTrade = false
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("notional %.2f exceeds available cash %.2f", notional, account.Cash))
			result.Checks.BindingLimit = "cash"
			return result
		}
	}

	result.Checks.BindingLimit = closestBinding(&result.Checks)
	return result
}

// closestBinding names the limit with the least headroom, for
// telemetry on passing validations.
func closestBinding(c *domain.GateChecks) string {
	binding := ""
	headroom := 0.0
	consider := func(name string, value float64, set bool) {
		if !set {
			return
		}
		if binding == "" || value < headroom {
			binding = name
			headroom = value
		}
	}
	consider("max_notional", c.NotionalHeadroom, c.NotionalHeadroom != 0)
	consider("equity_fraction", c.EquityHeadroom, c.EquityHeadroom != 0)
	consider("cash", c.CashHeadroom, c.CashHeadroom != 0)
	return binding
}
