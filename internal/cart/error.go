package cart

import "errors"

var (
	// -- Validation & Input --
	ErrInvalidItem      = errors.New("invalid item data")
	ErrInvalidItemID    = errors.New("invalid item id")
	ErrNegativeQuantity = errors.New("quantity cannot be negative")
	ErrInvalidProfile   = errors.New("invalid cart profile")

	// -- Storage --
	ErrNotFound         = errors.New("cart not found in storage")
	ErrCorruptCartState = errors.New("corrupt cart state")
	ErrFailedPersist    = errors.New("failed to persist cart")
	ErrFailedLoad       = errors.New("failed to load cart")
)
