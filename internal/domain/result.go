package domain

import "time"

// Signal is a trade candidate produced by the signal source.
type Signal struct {
	Symbol     string
	Side       Side
	Price      float64
	Quantity   int64
	Confidence float64 // 0..1
	StopLoss   float64 // 0 means none computed
	TakeProfit float64 // 0 means none computed
	Strategy   string
}

// GateChecks records how close each limit came to binding. Telemetry
// only, never consulted for control flow.
type GateChecks struct {
	CooldownRemaining time.Duration `json:"cooldown_remaining"`
	NotionalHeadroom  float64       `json:"notional_headroom"`
	EquityHeadroom    float64       `json:"equity_headroom"`
	CashHeadroom      float64       `json:"cash_headroom"`
	BindingLimit      string        `json:"binding_limit"`
}

// GateResult is the outcome of trade validation. Rejections are
// expected outcomes, not errors.
type GateResult struct {
	CanTrade bool       `json:"can_trade"`
	Reasons  []string   `json:"reasons,omitempty"`
	Checks   GateChecks `json:"checks"`
}

type TradeStatus string

const (
	TradeExecuted TradeStatus = "executed"
	TradeSkipped  TradeStatus = "skipped"
	TradeFailed   TradeStatus = "failed"
)

// TradeResult is the per-signal outcome of one invocation.
type TradeResult struct {
	Symbol  string      `json:"symbol"`
	Side    Side        `json:"side"`
	Status  TradeStatus `json:"status"`
	Reasons []string    `json:"reasons,omitempty"`
	OrderID string      `json:"order_id,omitempty"`
	// Unprotected is set when the entry executed but the exit levels
	// could not be persisted; the position has no stored protection.
	Unprotected bool `json:"unprotected,omitempty"`
}

type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitEmergency  ExitReason = "emergency_stop"
)

// ExitResult describes one triggered exit attempt.
type ExitResult struct {
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Reason      ExitReason  `json:"reason"`
	Status      TradeStatus `json:"status"`
	Quantity    int64       `json:"quantity"`
	OrderID     string      `json:"order_id,omitempty"`
	FillPrice   float64     `json:"fill_price,omitempty"`
	RealizedPnL *float64    `json:"realized_pnl,omitempty"` // nil when the fill was not observed
}

// MonitorResult is the outcome of one exit sweep.
type MonitorResult struct {
	Checked     int          `json:"checked"`
	Unprotected []string     `json:"unprotected,omitempty"`
	Exits       []ExitResult `json:"exits,omitempty"`
	Cleaned     int          `json:"cleaned"`
	Errors      []string     `json:"errors,omitempty"`
}

// InvocationResult aggregates one full stateless run of the engine.
type InvocationResult struct {
	StartedAt  time.Time      `json:"started_at"`
	MarketOpen bool           `json:"market_open"`
	Monitor    *MonitorResult `json:"monitor,omitempty"`
	Trades     []TradeResult  `json:"trades,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
}

// EmergencyStopResult reports a flatten-everything sweep. Per-symbol
// failures are collected, not fatal.
type EmergencyStopResult struct {
	Closed      []string          `json:"closed"`
	Failed      map[string]string `json:"failed,omitempty"`
	LevelsWiped int               `json:"levels_wiped"`
}
