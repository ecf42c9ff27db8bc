package broker

import "errors"

var (
	ErrInvalidEvent = errors.New("event requires type and order id")
	ErrUnknownKind  = errors.New("unknown broker kind")
	ErrMissingURL   = errors.New("broker address is required")
)
