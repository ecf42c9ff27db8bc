package admin

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLoginDisabled      = errors.New("admin login is not configured")
	ErrNoRecipients       = errors.New("burn export needs at least one age recipient")
	ErrInvalidRecipient   = errors.New("invalid age recipient")
	ErrInvalidCutoff      = errors.New("wipe needs the cutoff of a written export")
)
