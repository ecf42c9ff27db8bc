package delivery

import "errors"

var (
	ErrNotFound            = errors.New("delivery status not found")
	ErrDriverNotFound      = errors.New("driver not found")
	ErrDriverUnavailable   = errors.New("driver is not available")
	ErrAlreadyAssigned     = errors.New("delivery already assigned")
	ErrOrderNotReady       = errors.New("order is not paid")
	ErrInvalidStatus       = errors.New("invalid delivery status")
	ErrInvalidDriverStatus = errors.New("invalid driver status")
	ErrInvalidTransition   = errors.New("delivery cannot move to that status")
	ErrUnknownCommand      = errors.New("unknown driver command")
	ErrInvalidDriver       = errors.New("driver requires id and name")
)
