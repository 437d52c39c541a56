package checkout

import "errors"

var (
	ErrEmptyAddress    = errors.New("shipping address is required")
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrInvalidLineItem = errors.New("invalid line item")
)
