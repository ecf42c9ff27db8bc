package order

import "errors"

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrOrderNotFound  = errors.New("order not found")
	ErrInvalidOrderID = errors.New("invalid order id")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrCorruptItems   = errors.New("stored order items are unreadable")
)
