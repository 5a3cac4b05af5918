package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markow/stock_trade_guard/internal/domain"
	"github.com/markow/stock_trade_guard/internal/usecase"
)

type fakeBarSource struct {
	candles map[string][]domain.Candle
}

func (f *fakeBarSource) GetCandles(ctx context.Context, symbol string, limit int) ([]domain.Candle, error) {
	if c, ok := f.candles[symbol]; ok {
		return c, nil
	}
	return nil, errors.New("no data for " + symbol)
}

func candlesFromCloses(closes ...float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{Close: c}
	}
	return out
}

func testSignalConfig(symbols ...string) usecase.SignalConfig {
	return usecase.SignalConfig{
		Symbols:       symbols,
		FastPeriod:    2,
		SlowPeriod:    3,
		RSIPeriod:     3,
		RSIOverbought: 70,
		RSIOversold:   30,
		PositionSize:  10,
		StopLossPct:   0.03,
		TakeProfitPct: 0.06,
	}
}

func TestSMA(t *testing.T) {
	assert.InDelta(t, 4.0, usecase.SMA([]float64{1, 2, 3, 4, 5}, 3), 0.0001)
	assert.Equal(t, 0.0, usecase.SMA([]float64{1, 2}, 3))
	assert.Equal(t, 0.0, usecase.SMA(nil, 0))
}

func TestRSI(t *testing.T) {
	// Alternating +1/-1 over 5 moves: 3 gains, 2 losses.
	closes := []float64{10, 11, 10, 11, 10, 11}
	assert.InDelta(t, 60.0, usecase.RSI(closes, 5), 0.0001)

	// Not enough data reads as neutral.
	assert.Equal(t, 50.0, usecase.RSI([]float64{10, 11}, 5))

	// Pure uptrend saturates.
	assert.Equal(t, 100.0, usecase.RSI([]float64{10, 11, 12, 13}, 3))
}

func TestCandidates_BullishCrossover(t *testing.T) {
	bars := &fakeBarSource{candles: map[string][]domain.Candle{
		// Fast SMA crosses above slow on the final close, with a dip in
		// the series keeping RSI below overbought.
		"AAPL": candlesFromCloses(10, 9.5, 10, 10.6),
	}}
	svc := usecase.NewSignalService(bars, testLogger(), testSignalConfig("AAPL"))

	signals, err := svc.Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, "AAPL", sig.Symbol)
	assert.Equal(t, domain.SideLong, sig.Side)
	assert.InDelta(t, 10.6, sig.Price, 0.0001)
	assert.Equal(t, int64(10), sig.Quantity)
	assert.InDelta(t, 10.6*0.97, sig.StopLoss, 0.0001)
	assert.InDelta(t, 10.6*1.06, sig.TakeProfit, 0.0001)
	assert.Greater(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 1.0)
}

func TestCandidates_BearishCrossover(t *testing.T) {
	bars := &fakeBarSource{candles: map[string][]domain.Candle{
		"TSLA": candlesFromCloses(10, 10.5, 10, 9.4),
	}}
	svc := usecase.NewSignalService(bars, testLogger(), testSignalConfig("TSLA"))

	signals, err := svc.Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, domain.SideShort, sig.Side)
	// Short levels are mirrored: stop above entry, target below.
	assert.Greater(t, sig.StopLoss, sig.Price)
	assert.Less(t, sig.TakeProfit, sig.Price)
}

func TestCandidates_NoCrossoverNoSignal(t *testing.T) {
	bars := &fakeBarSource{candles: map[string][]domain.Candle{
		// Fast already above slow on both bars: no fresh cross.
		"AAPL": candlesFromCloses(10, 11, 12, 13),
	}}
	svc := usecase.NewSignalService(bars, testLogger(), testSignalConfig("AAPL"))

	signals, err := svc.Candidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestCandidates_InsufficientHistorySkipped(t *testing.T) {
	bars := &fakeBarSource{candles: map[string][]domain.Candle{
		"AAPL": candlesFromCloses(10, 10.5),
	}}
	svc := usecase.NewSignalService(bars, testLogger(), testSignalConfig("AAPL"))

	signals, err := svc.Candidates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestCandidates_OneSymbolFailingDoesNotBlockOthers(t *testing.T) {
	bars := &fakeBarSource{candles: map[string][]domain.Candle{
		"GOOD": candlesFromCloses(10, 9.5, 10, 10.6),
	}}
	svc := usecase.NewSignalService(bars, testLogger(), testSignalConfig("BROKEN", "GOOD"))

	signals, err := svc.Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, "GOOD", signals[0].Symbol)
}
