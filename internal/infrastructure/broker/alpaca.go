package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/markow/stock_trade_guard/internal/domain"
)

// AlpacaAdapter implements domain.Broker and domain.BarSource against
// the Alpaca trading and market-data APIs. Decimal conversion stays at
// this boundary; the domain works in float64.
type AlpacaAdapter struct {
	client *alpaca.Client
	md     *marketdata.Client
}

func NewAlpacaAdapter(apiKey, apiSecret, baseURL string) *AlpacaAdapter {
	return &AlpacaAdapter{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		md: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
	}
}

func (a *AlpacaAdapter) GetAccount(ctx context.Context) (*domain.Account, error) {
	account, err := a.client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &domain.Account{
		Equity:      account.Equity.InexactFloat64(),
		Cash:        account.Cash.InexactFloat64(),
		BuyingPower: account.BuyingPower.InexactFloat64(),
	}, nil
}

func (a *AlpacaAdapter) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	positions, err := a.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	result := make([]*domain.Position, 0, len(positions))
	for i := range positions {
		result = append(result, toPosition(&positions[i]))
	}
	return result, nil
}

func (a *AlpacaAdapter) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	pos, err := a.client.GetPosition(domain.NormalizeSymbol(symbol))
	if err != nil {
		if apiErr, ok := err.(*alpaca.APIError); ok && apiErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get position for %s: %w", symbol, err)
	}
	return toPosition(pos), nil
}

func (a *AlpacaAdapter) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	quote, err := a.md.GetLatestQuote(domain.NormalizeSymbol(symbol), marketdata.GetLatestQuoteRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}
	return &domain.Quote{
		Symbol: domain.NormalizeSymbol(symbol),
		Bid:    quote.BidPrice,
		Ask:    quote.AskPrice,
	}, nil
}

func (a *AlpacaAdapter) SubmitOrder(ctx context.Context, req *domain.OrderRequest) (*domain.Order, error) {
	qty := decimal.NewFromInt(req.Quantity)

	orderReq := alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(req.Side),
		Type:          alpaca.OrderType(req.Type),
		TimeInForce:   alpaca.Day,
		ClientOrderID: uuid.NewString(),
	}
	if req.Type == domain.OrderLimit {
		limit := decimal.NewFromFloat(req.LimitPrice).Round(2)
		orderReq.LimitPrice = &limit
	}

	order, err := a.client.PlaceOrder(orderReq)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	return toOrder(order), nil
}

func (a *AlpacaAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := a.client.GetOrder(orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return toOrder(order), nil
}

func (a *AlpacaAdapter) IsMarketOpen(ctx context.Context) (bool, error) {
	clock, err := a.client.GetClock()
	if err != nil {
		return false, fmt.Errorf("failed to get market clock: %w", err)
	}
	return clock.IsOpen, nil
}

// GetCandles implements domain.BarSource with daily bars.
func (a *AlpacaAdapter) GetCandles(ctx context.Context, symbol string, limit int) ([]domain.Candle, error) {
	bars, err := a.md.GetBars(domain.NormalizeSymbol(symbol), marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      time.Now().AddDate(0, 0, -limit*2),
		TotalLimit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}

	candles := make([]domain.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, domain.Candle{
			Time:   b.Timestamp.Unix(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	return candles, nil
}

func toPosition(p *alpaca.Position) *domain.Position {
	side := domain.SideLong
	if p.Side == "short" {
		side = domain.SideShort
	}
	pos := &domain.Position{
		Symbol:     domain.NormalizeSymbol(p.Symbol),
		Side:       side,
		Quantity:   p.Qty.IntPart(),
		EntryPrice: p.AvgEntryPrice.InexactFloat64(),
	}
	if p.CurrentPrice != nil {
		pos.CurrentPrice = p.CurrentPrice.InexactFloat64()
	}
	return pos
}

func toOrder(o *alpaca.Order) *domain.Order {
	order := &domain.Order{
		ID:          o.ID,
		Symbol:      o.Symbol,
		Side:        domain.OrderSide(o.Side),
		Status:      domain.OrderStatus(o.Status),
		FilledQty:   o.FilledQty.IntPart(),
		SubmittedAt: o.SubmittedAt,
	}
	if o.Qty != nil {
		order.Quantity = o.Qty.IntPart()
	}
	if o.FilledAvgPrice != nil {
		order.FilledAvgPrice = o.FilledAvgPrice.InexactFloat64()
	}
	return order
}
