package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markow/stock_trade_guard/internal/domain"
	"github.com/markow/stock_trade_guard/internal/usecase"
)

func newStore(t *testing.T) (*usecase.PositionStore, *MockLedger, *FakeClock) {
	t.Helper()
	ledger := NewMockLedger()
	clock := NewFakeClock(time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC))
	store := usecase.NewPositionStore(ledger, clock, testLogger(), 24*time.Hour)
	return store, ledger, clock
}

func sampleLevels(symbol string) *domain.PositionLevels {
	return &domain.PositionLevels{
		Symbol:     symbol,
		StopLoss:   97,
		TakeProfit: 106,
		EntryPrice: 100,
		Side:       domain.SideLong,
		Quantity:   10,
		Strategy:   "sma_rsi_crossover",
		OrderID:    "order-1",
	}
}

func TestStoreLevels_RejectsRecordWithoutAnyLevel(t *testing.T) {
	store, ledger, _ := newStore(t)

	levels := sampleLevels("AAPL")
	levels.StopLoss = 0
	levels.TakeProfit = 0

	assert.False(t, store.StoreLevels(context.Background(), levels))
	assert.Equal(t, 0, ledger.RowCount(domain.TablePositionLevels))
}

func TestStoreLevels_OverwritesNotAppends(t *testing.T) {
	store, ledger, _ := newStore(t)
	ctx := context.Background()

	first := sampleLevels("AAPL")
	require.True(t, store.StoreLevels(ctx, first))

	second := sampleLevels("aapl")
	second.StopLoss = 95
	second.TakeProfit = 110
	require.True(t, store.StoreLevels(ctx, second))

	assert.Equal(t, 1, ledger.RowCount(domain.TablePositionLevels))

	got := store.GetLevels(ctx, "AAPL")
	require.NotNil(t, got)
	assert.Equal(t, 95.0, got.StopLoss)
	assert.Equal(t, 110.0, got.TakeProfit)
}

func TestStoreLevels_StampsExpiry(t *testing.T) {
	store, _, clock := newStore(t)
	ctx := context.Background()

	levels := sampleLevels("AAPL")
	require.True(t, store.StoreLevels(ctx, levels))

	got := store.GetLevels(ctx, "AAPL")
	require.NotNil(t, got)
	assert.True(t, got.CreatedAt.Equal(clock.Now()))
	assert.True(t, got.ExpiresAt.Equal(clock.Now().Add(24*time.Hour)))
}

func TestGetLevels_ExpiredRecordIsAbsentAndDeleted(t *testing.T) {
	store, ledger, clock := newStore(t)
	ctx := context.Background()

	require.True(t, store.StoreLevels(ctx, sampleLevels("AAPL")))

	clock.Advance(24*time.Hour + time.Minute)

	assert.Nil(t, store.GetLevels(ctx, "AAPL"))
	// Lazy expiry deletes as a side effect.
	assert.Equal(t, 0, ledger.RowCount(domain.TablePositionLevels))
}

func TestGetLevels_ReadFailureIsNotFound(t *testing.T) {
	store, ledger, _ := newStore(t)
	ctx := context.Background()

	require.True(t, store.StoreLevels(ctx, sampleLevels("AAPL")))
	ledger.FailReads = true

	assert.Nil(t, store.GetLevels(ctx, "AAPL"))
}

func TestStoreLevels_WriteFailureReturnsFalse(t *testing.T) {
	store, ledger, _ := newStore(t)
	ledger.FailWrites = true

	assert.False(t, store.StoreLevels(context.Background(), sampleLevels("AAPL")))
}

func TestRemoveLevels_Idempotent(t *testing.T) {
	store, ledger, _ := newStore(t)
	ctx := context.Background()

	require.True(t, store.StoreLevels(ctx, sampleLevels("AAPL")))

	assert.True(t, store.RemoveLevels(ctx, "AAPL"))
	assert.True(t, store.RemoveLevels(ctx, "AAPL"))
	assert.Equal(t, 0, ledger.RowCount(domain.TablePositionLevels))
}

func TestPreload_ServesLookupsFromIndex(t *testing.T) {
	store, ledger, _ := newStore(t)
	ctx := context.Background()

	require.True(t, store.StoreLevels(ctx, sampleLevels("AAPL")))

	store.Preload(ctx)
	ledger.FailReads = true

	// Indexed lookups do not touch the ledger.
	got := store.GetLevels(ctx, "AAPL")
	require.NotNil(t, got)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Nil(t, store.GetLevels(ctx, "MSFT"))
}

func TestListSymbols(t *testing.T) {
	store, _, _ := newStore(t)
	ctx := context.Background()

	require.True(t, store.StoreLevels(ctx, sampleLevels("AAPL")))
	require.True(t, store.StoreLevels(ctx, sampleLevels("MSFT")))
	require.True(t, store.StoreLevels(ctx, sampleLevels("NVDA")))

	symbols, err := store.ListSymbols(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT", "NVDA"}, symbols)
}

func TestStats(t *testing.T) {
	store, _, clock := newStore(t)
	ctx := context.Background()

	require.True(t, store.StoreLevels(ctx, sampleLevels("AAPL")))

	short := sampleLevels("MSFT")
	short.Side = domain.SideShort
	short.Strategy = "manual"
	require.True(t, store.StoreLevels(ctx, short))

	// Third record, then let it expire.
	require.True(t, store.StoreLevels(ctx, sampleLevels("NVDA")))
	clock.Advance(25 * time.Hour)
	require.True(t, store.StoreLevels(ctx, sampleLevels("AAPL")))
	require.True(t, store.StoreLevels(ctx, short))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Valid)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 2, stats.BySide[domain.SideLong])
	assert.Equal(t, 1, stats.BySide[domain.SideShort])
	assert.Equal(t, 1, stats.ByStrategy["manual"])
	assert.Equal(t, 2, stats.ByStrategy["sma_rsi_crossover"])
}
