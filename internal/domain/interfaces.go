package domain

import (
	"context"
	"time"
)

// Broker defines the brokerage operations the engine consumes.
type Broker interface {
	GetAccount(ctx context.Context) (*Account, error)
	GetPositions(ctx context.Context) ([]*Position, error)
	GetPosition(ctx context.Context, symbol string) (*Position, error) // nil, nil when flat
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	SubmitOrder(ctx context.Context, req *OrderRequest) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	IsMarketOpen(ctx context.Context) (bool, error)
}

// QuoteSource is the read-only slice of Broker the exit monitor needs
// for trigger evaluation. A streaming cache can front the broker here.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// BarSource supplies candles to the indicator signal source.
type BarSource interface {
	GetCandles(ctx context.Context, symbol string, limit int) ([]Candle, error)
}

// Row is one ledger row: string cells keyed by column name.
type Row map[string]string

// Ledger table names.
const (
	TablePositionLevels = "position_levels"
	TableTradeState     = "trade_state"
	TableSignalStrength = "signal_strength"
)

// Ledger is the remote tabular store that carries all state between
// invocations. Put updates in place when the key exists, Delete is
// idempotent, Get returns nil, nil when the key is absent. The store is
// rate limited; callers must tolerate transient failures.
type Ledger interface {
	Get(ctx context.Context, table, key string) (Row, error)
	Put(ctx context.Context, table, key string, row Row) error
	Delete(ctx context.Context, table, key string) error
	ScanAll(ctx context.Context, table string) ([]Row, error)
}

// Clock abstracts time so cooldown and expiry logic stays testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
