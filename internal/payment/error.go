package payment

import "errors"

var (
	ErrInvalidConfig     = errors.New("admin wallet not configured")
	ErrInvalidAmount     = errors.New("payment amount must be positive")
	ErrPriceUnavailable  = errors.New("failed to fetch bitcoin price")
	ErrTimeout           = errors.New("payment monitoring timed out")
	ErrConnectionFailed  = errors.New("failed to establish payment monitoring connection")
	ErrStopped           = errors.New("payment monitoring stopped")
	ErrAlreadyWatching   = errors.New("order is already being monitored")
	ErrSessionNotFound   = errors.New("no monitoring session for order")
	ErrMonitorClosed     = errors.New("payment monitor closed")
	ErrSubscriptionEnded = errors.New("transaction feed subscription ended")
)
