package domain

import "time"

type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "new"
	OrderStatusAccepted OrderStatus = "accepted"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusCanceled OrderStatus = "canceled"
)

// OrderRequest is the broker submission shape.
type OrderRequest struct {
	Symbol      string
	Quantity    int64
	Side        OrderSide
	Type        OrderType
	LimitPrice  float64 // only for limit orders
	TimeInForce string
}

// Order is the broker's view of a submitted order.
type Order struct {
	ID             string
	Symbol         string
	Side           OrderSide
	Quantity       int64
	Status         OrderStatus
	FilledQty      int64
	FilledAvgPrice float64 // 0 until filled
	SubmittedAt    time.Time
}

// Filled reports whether the order has a usable fill price.
func (o *Order) Filled() bool {
	return o != nil && o.Status == OrderStatusFilled && o.FilledAvgPrice > 0
}

// SideForClosing maps a position side to the order side that flattens it.
func SideForClosing(s Side) OrderSide {
	if s == SideLong {
		return OrderSell
	}
	return OrderBuy
}

// SideForOpening maps a position side to the order side that opens it.
func SideForOpening(s Side) OrderSide {
	if s == SideLong {
		return OrderBuy
	}
	return OrderSell
}
