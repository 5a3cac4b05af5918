package domain

import (
	"strings"
	"time"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// NormalizeSymbol canonicalizes an instrument identifier for use as a
// ledger key.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Position represents an open position reported by the broker.
type Position struct {
	Symbol       string
	Side         Side
	Quantity     int64
	EntryPrice   float64
	CurrentPrice float64
}

// AbsQuantity returns the unsigned share count reported by the broker.
// Exit orders are always sized from this, never from stored state,
// which can drift after partial fills.
func (p *Position) AbsQuantity() int64 {
	if p.Quantity < 0 {
		return -p.Quantity
	}
	return p.Quantity
}

// PositionLevels is the externalized exit record for one symbol.
// At most one live record exists per symbol; writes overwrite in place.
type PositionLevels struct {
	Symbol     string
	StopLoss   float64 // 0 means unset
	TakeProfit float64 // 0 means unset
	EntryPrice float64
	Side       Side
	Quantity   int64
	Strategy   string
	OrderID    string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Valid reports whether the record protects anything at all. A record
// with neither stop-loss nor take-profit must never be persisted.
func (l *PositionLevels) Valid() bool {
	return l != nil && (l.StopLoss > 0 || l.TakeProfit > 0)
}

// Expired reports whether the dead-man's-switch horizon has passed.
func (l *PositionLevels) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && l.ExpiresAt.Before(now)
}

// TradeState is the last-trade audit row for one symbol. Only the most
// recent row matters: it drives the cooldown check.
type TradeState struct {
	Symbol    string
	Side      Side
	Strategy  string
	Quantity  int64
	Price     float64
	OrderID   string
	Timestamp time.Time
}

// SignalStrengthRecord is the last recorded signal confidence for a
// (symbol, side) pair. Re-entry into an open position requires the new
// signal to beat this by a configured ratio.
type SignalStrengthRecord struct {
	Symbol     string
	Side       Side
	Strategy   string
	Strength   float64 // 0..1
	OrderID    string  // empty until the trade executes
	RecordedAt time.Time
}

// Account is the broker account snapshot read once per invocation.
type Account struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
}

// Quote is a top-of-book bid/ask pair.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
}

// Candle is one OHLCV bar, the input to the indicator signal source.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}
