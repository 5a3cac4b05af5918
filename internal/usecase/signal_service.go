package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
)

// SignalConfig tunes the indicator signal source.
type SignalConfig struct {
	Symbols       []string
	FastPeriod    int // fast SMA window
	SlowPeriod    int // slow SMA window
	RSIPeriod     int // RSI lookback
	RSIOverbought float64
	RSIOversold   float64
	PositionSize  int64   // shares per entry
	StopLossPct   float64 // stop distance below/above entry
	TakeProfitPct float64 // target distance above/below entry
}

// SignalSource supplies trade candidates to the engine.
type SignalSource interface {
	Candidates(ctx context.Context) ([]*domain.Signal, error)
}

// SignalService generates candidates from an SMA crossover filtered by
// RSI. It is a collaborator of the core, not part of it: the engine
// only consumes the candidate shape.
type SignalService struct {
	bars   domain.BarSource
	logger *zap.Logger
	cfg    SignalConfig
}

func NewSignalService(bars domain.BarSource, logger *zap.Logger, cfg SignalConfig) *SignalService {
	if cfg.FastPeriod <= 0 {
		cfg.FastPeriod = 9
	}
	if cfg.SlowPeriod <= cfg.FastPeriod {
		cfg.SlowPeriod = 21
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = 14
	}
	if cfg.RSIOverbought <= 0 {
		cfg.RSIOverbought = 70
	}
	if cfg.RSIOversold <= 0 {
		cfg.RSIOversold = 30
	}
	return &SignalService{bars: bars, logger: logger, cfg: cfg}
}

// Candidates evaluates every configured symbol. One symbol failing to
// produce data does not block the others.
func (s *SignalService) Candidates(ctx context.Context) ([]*domain.Signal, error) {
	var signals []*domain.Signal
	for _, symbol := range s.cfg.Symbols {
		candles, err := s.bars.GetCandles(ctx, symbol, s.cfg.SlowPeriod+1)
		if err != nil {
			s.logger.Warn("candle fetch failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		signal, err := s.evaluate(symbol, candles)
		if err != nil {
			s.logger.Debug("no signal", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if signal != nil {
			signals = append(signals, signal)
		}
	}
	return signals, nil
}

func (s *SignalService) evaluate(symbol string, candles []domain.Candle) (*domain.Signal, error) {
	if len(candles) < s.cfg.SlowPeriod+1 {
		return nil, fmt.Errorf("need %d candles, have %d", s.cfg.SlowPeriod+1, len(candles))
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	fastNow := SMA(closes, s.cfg.FastPeriod)
	slowNow := SMA(closes, s.cfg.SlowPeriod)
	prev := closes[:len(closes)-1]
	fastPrev := SMA(prev, s.cfg.FastPeriod)
	slowPrev := SMA(prev, s.cfg.SlowPeriod)
	rsi := RSI(closes, s.cfg.RSIPeriod)
	price := closes[len(closes)-1]

	var side domain.Side
	switch {
	case fastPrev <= slowPrev && fastNow > slowNow && rsi < s.cfg.RSIOverbought:
		side = domain.SideLong
	case fastPrev >= slowPrev && fastNow < slowNow && rsi > s.cfg.RSIOversold:
		side = domain.SideShort
	default:
		return nil, nil
	}

	signal := &domain.Signal{
		Symbol:     domain.NormalizeSymbol(symbol),
		Side:       side,
		Price:      price,
		Quantity:   s.cfg.PositionSize,
		Confidence: crossoverConfidence(fastNow, slowNow, rsi, side),
		Strategy:   "sma_rsi_crossover",
	}
	if s.cfg.StopLossPct > 0 {
		if side == domain.SideLong {
			signal.StopLoss = price * (1 - s.cfg.StopLossPct)
		} else {
			signal.StopLoss = price * (1 + s.cfg.StopLossPct)
		}
	}
	if s.cfg.TakeProfitPct > 0 {
		if side == domain.SideLong {
			signal.TakeProfit = price * (1 + s.cfg.TakeProfitPct)
		} else {
			signal.TakeProfit = price * (1 - s.cfg.TakeProfitPct)
		}
	}
	return signal, nil
}

// crossoverConfidence maps the crossover spread and RSI position into a
// 0..1 score. The spread term saturates at 2% separation.
func crossoverConfidence(fast, slow, rsi float64, side domain.Side) float64 {
	spread := (fast - slow) / slow
	if side == domain.SideShort {
		spread = -spread
	}
	if spread < 0 {
		spread = 0
	}
	spreadScore := spread / 0.02
	if spreadScore > 1 {
		spreadScore = 1
	}

	// Distance from the unfavourable RSI extreme, normalized to 0..1.
	var rsiScore float64
	if side == domain.SideLong {
		rsiScore = (70 - rsi) / 70
	} else {
		rsiScore = (rsi - 30) / 70
	}
	if rsiScore < 0 {
		rsiScore = 0
	} else if rsiScore > 1 {
		rsiScore = 1
	}

	return 0.5*spreadScore + 0.5*rsiScore
}

// SMA returns the simple moving average of the last period closes.
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}

// RSI returns the relative strength index over the last period moves,
// using the simple (non-smoothed) average of gains and losses.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	var gains, losses float64
	window := closes[len(closes)-period-1:]
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}
