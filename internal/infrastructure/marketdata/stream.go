package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
)

// quoteTTL bounds how long a streamed quote is considered live before
// the fallback source is consulted instead.
const quoteTTL = 10 * time.Second

type streamMessage struct {
	Type   string  `json:"T"`
	Symbol string  `json:"S"`
	Bid    float64 `json:"bp"`
	Ask    float64 `json:"ap"`
	Msg    string  `json:"msg"`
}

// QuoteStream keeps a cache of the latest bid/ask per subscribed symbol
// fed by the Alpaca market-data websocket. It only caches; it never
// becomes the source of truth for anything persisted.
type QuoteStream struct {
	url       string
	apiKey    string
	apiSecret string
	symbols   []string
	logger    *zap.Logger

	mu     sync.RWMutex
	quotes map[string]*domain.Quote
	seen   map[string]time.Time

	done chan struct{}
}

func NewQuoteStream(url, apiKey, apiSecret string, symbols []string, logger *zap.Logger) *QuoteStream {
	return &QuoteStream{
		url:       url,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		symbols:   symbols,
		logger:    logger,
		quotes:    make(map[string]*domain.Quote),
		seen:      make(map[string]time.Time),
		done:      make(chan struct{}),
	}
}

// Run connects and consumes quote messages until the context is
// canceled, reconnecting with a fixed delay on failure.
func (s *QuoteStream) Run(ctx context.Context) {
	defer close(s.done)
	for {
		if err := s.consume(ctx); err != nil {
			s.logger.Warn("quote stream disconnected", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (s *QuoteStream) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	auth := map[string]string{"action": "auth", "key": s.apiKey, "secret": s.apiSecret}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	sub := map[string]any{"action": "subscribe", "quotes": s.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("quote stream connected", zap.Strings("symbols", s.symbols))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var messages []streamMessage
		if err := json.Unmarshal(payload, &messages); err != nil {
			s.logger.Debug("unparseable stream payload", zap.Error(err))
			continue
		}
		for _, msg := range messages {
			switch msg.Type {
			case "q":
				s.update(msg)
			case "error":
				s.logger.Warn("quote stream error message", zap.String("msg", msg.Msg))
			}
		}
	}
}

func (s *QuoteStream) update(msg streamMessage) {
	symbol := domain.NormalizeSymbol(msg.Symbol)
	s.mu.Lock()
	s.quotes[symbol] = &domain.Quote{Symbol: symbol, Bid: msg.Bid, Ask: msg.Ask}
	s.seen[symbol] = time.Now()
	s.mu.Unlock()
}

// Latest returns the cached quote for a symbol if it is fresh enough.
func (s *QuoteStream) Latest(symbol string) (*domain.Quote, bool) {
	symbol = domain.NormalizeSymbol(symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	quote, ok := s.quotes[symbol]
	if !ok || time.Since(s.seen[symbol]) > quoteTTL {
		return nil, false
	}
	return quote, true
}

// FallbackQuoteSource serves quotes from the stream cache when fresh,
// falling back to the REST source otherwise.
type FallbackQuoteSource struct {
	stream *QuoteStream
	rest   domain.QuoteSource
}

func NewFallbackQuoteSource(stream *QuoteStream, rest domain.QuoteSource) *FallbackQuoteSource {
	return &FallbackQuoteSource{stream: stream, rest: rest}
}

func (f *FallbackQuoteSource) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if f.stream != nil {
		if quote, ok := f.stream.Latest(symbol); ok {
			return quote, nil
		}
	}
	return f.rest.GetQuote(ctx, symbol)
}
