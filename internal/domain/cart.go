package domain

import "github.com/shopspring/decimal"

// StockUnknown marks a line item whose stock ceiling was never recorded,
// as in carts saved before stock was tracked. Such items are not clamped.
const StockUnknown = -1

// LineItem is one product's entry in the cart.
type LineItem struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url"`
	Stock    int             `json:"stock"`
	Quantity int             `json:"quantity"`
}

// NewLineItem copies the product fields a cart entry keeps, with quantity 1.
// A negative product stock is recorded as StockUnknown.
func NewLineItem(p Product) LineItem {
	stock := p.Stock
	if stock < 0 {
		stock = StockUnknown
	}
	return LineItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		ImageURL: p.ImageURL,
		Stock:    stock,
		Quantity: 1,
	}
}

// Clamp limits quantity to the stock ceiling. A known stock of 0 clamps to 0.
func (li LineItem) Clamp(quantity int) int {
	if li.Stock != StockUnknown && quantity > li.Stock {
		return li.Stock
	}
	return quantity
}

// Subtotal returns price × quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Total sums price × quantity over items.
func Total(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// TotalQuantity sums quantities over items.
func TotalQuantity(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
