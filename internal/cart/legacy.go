package cart

import (
	"encoding/json"
	"fmt"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// storedLineItem accepts both the canonical "id" and the older "product_id" alias
// that earlier clients wrote alongside it. Old entries may also lack "stock".
type storedLineItem struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url"`
	Stock     *int            `json:"stock"`
	Quantity  int             `json:"quantity"`
}

// decodeCart parses a persisted cart and normalizes it: one canonical id per item,
// no duplicate ids, no non-positive quantities, quantities within stock.
// Entries without a stock field get StockUnknown.
// migrated reports whether the normalized form differs from what was stored.
func decodeCart(data []byte) (items []domain.LineItem, migrated bool, err error) {
	var stored []storedLineItem
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, false, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	index := make(map[int64]int, len(stored))
	for _, s := range stored {
		id := s.ID
		if id == 0 {
			id = s.ProductID
		}
		if s.ProductID != 0 {
			migrated = true
		}
		if id == 0 || s.Quantity <= 0 {
			migrated = true
			continue
		}

		if i, ok := index[id]; ok {
			merged := items[i].Clamp(items[i].Quantity + s.Quantity)
			items[i].Quantity = merged
			migrated = true
			continue
		}

		stock := domain.StockUnknown
		if s.Stock != nil && *s.Stock >= 0 {
			stock = *s.Stock
		}
		item := domain.LineItem{
			ID:       id,
			Name:     s.Name,
			Price:    s.Price,
			ImageURL: s.ImageURL,
			Stock:    stock,
		}
		item.Quantity = item.Clamp(s.Quantity)
		if item.Quantity != s.Quantity {
			migrated = true
		}
		index[id] = len(items)
		items = append(items, item)
	}

	// a known stock of 0 clamps an entry away entirely
	kept := items[:0]
	for _, it := range items {
		if it.Quantity >= 1 {
			kept = append(kept, it)
		}
	}
	return kept, migrated, nil
}
