package usecase_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
)

// FakeClock is a settable clock for cooldown/expiry tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// MockLedger is an in-memory ledger preserving insertion order per
// table, with switchable failure modes.
type MockLedger struct {
	mu     sync.Mutex
	tables map[string][]ledgerEntry

	FailReads  bool
	FailWrites bool
}

type ledgerEntry struct {
	key string
	row domain.Row
}

func NewMockLedger() *MockLedger {
	return &MockLedger{tables: make(map[string][]ledgerEntry)}
}

func (m *MockLedger) Get(ctx context.Context, table, key string) (domain.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return nil, errors.New("ledger read unavailable")
	}
	for _, e := range m.tables[table] {
		if e.key == key {
			return e.row, nil
		}
	}
	return nil, nil
}

func (m *MockLedger) Put(ctx context.Context, table, key string, row domain.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errors.New("ledger write unavailable")
	}
	entries := m.tables[table]
	for i, e := range entries {
		if e.key == key {
			entries[i].row = row
			return nil
		}
	}
	m.tables[table] = append(entries, ledgerEntry{key: key, row: row})
	return nil
}

func (m *MockLedger) Delete(ctx context.Context, table, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errors.New("ledger write unavailable")
	}
	entries := m.tables[table]
	for i, e := range entries {
		if e.key == key {
			m.tables[table] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockLedger) ScanAll(ctx context.Context, table string) ([]domain.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return nil, errors.New("ledger read unavailable")
	}
	rows := make([]domain.Row, 0, len(m.tables[table]))
	for _, e := range m.tables[table] {
		rows = append(rows, e.row)
	}
	return rows, nil
}

// RowCount reports how many rows a table holds.
func (m *MockLedger) RowCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

// MockBroker simulates the brokerage. Orders fill at the configured
// fill price unless SubmitFailures is positive, in which case that many
// submissions fail first.
type MockBroker struct {
	mu sync.Mutex

	Account    *domain.Account
	Positions  []*domain.Position
	Quotes     map[string]*domain.Quote
	MarketOpen bool

	SubmitFailures int // fail this many submissions before succeeding
	FillPrice      float64
	Unfilled       bool // leave orders unfilled on the status poll

	Submitted []*domain.OrderRequest
	orders    map[string]*domain.Order
	nextID    int
}

func NewMockBroker() *MockBroker {
	return &MockBroker{
		Account:    &domain.Account{Equity: 100000, Cash: 50000, BuyingPower: 200000},
		Quotes:     make(map[string]*domain.Quote),
		MarketOpen: true,
		orders:     make(map[string]*domain.Order),
	}
}

func (m *MockBroker) GetAccount(ctx context.Context) (*domain.Account, error) {
	if m.Account == nil {
		return nil, errors.New("account unavailable")
	}
	return m.Account, nil
}

func (m *MockBroker) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Position(nil), m.Positions...), nil
}

func (m *MockBroker) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Positions {
		if p.Symbol == symbol {
			return p, nil
		}
	}
	return nil, nil
}

func (m *MockBroker) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.Quotes[symbol]; ok {
		return q, nil
	}
	return nil, errors.New("no quote for " + symbol)
}

func (m *MockBroker) SubmitOrder(ctx context.Context, req *domain.OrderRequest) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitFailures > 0 {
		m.SubmitFailures--
		return nil, errors.New("order rejected by venue")
	}
	m.Submitted = append(m.Submitted, req)
	m.nextID++
	id := "order-" + strconv.Itoa(m.nextID)
	order := &domain.Order{
		ID:       id,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Status:   domain.OrderStatusAccepted,
	}
	if !m.Unfilled {
		order = &domain.Order{
			ID:             id,
			Symbol:         req.Symbol,
			Side:           req.Side,
			Quantity:       req.Quantity,
			Status:         domain.OrderStatusFilled,
			FilledQty:      req.Quantity,
			FilledAvgPrice: m.FillPrice,
		}
	}
	m.orders[id] = order
	return order, nil
}

func (m *MockBroker) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order, ok := m.orders[orderID]; ok {
		return order, nil
	}
	return nil, errors.New("unknown order " + orderID)
}

func (m *MockBroker) IsMarketOpen(ctx context.Context) (bool, error) {
	return m.MarketOpen, nil
}

// SetPosition adds or replaces a held position.
func (m *MockBroker) SetPosition(symbol string, side domain.Side, qty int64, entry float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.Positions {
		if p.Symbol == symbol {
			m.Positions[i] = &domain.Position{Symbol: symbol, Side: side, Quantity: qty, EntryPrice: entry}
			return
		}
	}
	m.Positions = append(m.Positions, &domain.Position{Symbol: symbol, Side: side, Quantity: qty, EntryPrice: entry})
}

// ClearPosition removes a held position.
func (m *MockBroker) ClearPosition(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.Positions {
		if p.Symbol == symbol {
			m.Positions = append(m.Positions[:i], m.Positions[i+1:]...)
			return
		}
	}
}

// SetQuote sets the top-of-book for a symbol.
func (m *MockBroker) SetQuote(symbol string, bid, ask float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Quotes[symbol] = &domain.Quote{Symbol: symbol, Bid: bid, Ask: ask}
}

// MockSignalSource returns a fixed candidate list.
type MockSignalSource struct {
	Signals []*domain.Signal
	Err     error
}

func (m *MockSignalSource) Candidates(ctx context.Context) ([]*domain.Signal, error) {
	return m.Signals, m.Err
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
