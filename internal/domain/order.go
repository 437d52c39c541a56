package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
)

// OrderItem is the per-product copy carried by an order payload.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// OrderPayload is what checkout assembles from a cart snapshot.
type OrderPayload struct {
	ShippingAddress string          `json:"shippingAddress"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
}

// PendingOrder is an order queued locally because the remote API could not take it.
// Records are append-only.
type PendingOrder struct {
	ID              string          `json:"id"`
	ShippingAddress string          `json:"shippingAddress"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RemoteOrder is the order returned by the remote API under its "data" envelope.
type RemoteOrder struct {
	ID              OrderRef        `json:"id"`
	UserID          int64           `json:"user_id,omitempty"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
}

// OrderRef is a remote order id; the backend may encode it as a number or a string.
type OrderRef string

func (r *OrderRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = OrderRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	*r = OrderRef(n.String())
	return nil
}
