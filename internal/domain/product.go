package domain

import "github.com/shopspring/decimal"

// Product is a catalog entry as served by the remote storefront API.
// Price may arrive as a JSON number or a numeric string; decimal accepts both.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"`
}
