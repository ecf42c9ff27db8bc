package notify

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured = errors.New("notification channel not configured")
	ErrNoRecipient   = errors.New("no recipient given")
	ErrEmptyMessage  = errors.New("message text is empty")
)

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider    string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Description)
}

// Temporary reports whether the request may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
