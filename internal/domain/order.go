package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// ParseOrderSide accepts "buy"/"sell" in any case.
func ParseOrderSide(s string) (OrderSide, bool) {
	switch OrderSide(strings.ToLower(strings.TrimSpace(s))) {
	case OrderSideBuy:
		return OrderSideBuy, true
	case OrderSideSell:
		return OrderSideSell, true
	}
	return "", false
}

// OrderStatus tracks the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// NormalizeOrderStatus lower-cases s. Unknown values are passed through so
// newer backend statuses still reach the order list.
func NormalizeOrderStatus(s string) OrderStatus {
	return OrderStatus(strings.ToLower(strings.TrimSpace(s)))
}

// Order is a user order as held by the dashboard. Status is the only field
// that changes after creation.
type Order struct {
	ID        int64           `json:"id"`
	Pair      string          `json:"pair"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Side      OrderSide       `json:"type"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Total returns amount * price.
func (o Order) Total() decimal.Decimal {
	return o.Amount.Mul(o.Price)
}

// OrderRequest is the body of a new order submission.
type OrderRequest struct {
	Pair   string
	Amount decimal.Decimal
	Side   OrderSide
	Price  decimal.Decimal
}

// Validate checks the request before it is sent.
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.Pair) == "" {
		return ErrInvalidOrder
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidOrder
	}
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return ErrInvalidOrder
	}
	if r.Price.IsNegative() {
		return ErrInvalidOrder
	}
	return nil
}
