package store

import (
	"context"
	"errors"
)

// Fixed keys used by the storefront.
const (
	CartKey   = "ecommerce_cart"
	OrdersKey = "orders"
)

var ErrNotFound = errors.New("key not found")

// Store is the persistent key/value backend. Every Set replaces the whole value.
// Get returns ErrNotFound when the key is absent; deleting an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
