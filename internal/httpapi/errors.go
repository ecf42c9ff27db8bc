package httpapi

import (
	"errors"
	"net/http"

	"zazoom-be/internal/admin"
	"zazoom-be/internal/cart"
	"zazoom-be/internal/delivery"
	"zazoom-be/internal/events"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/notify"
	"zazoom-be/internal/order"
	"zazoom-be/internal/payment"
	"zazoom-be/internal/utils"

	"go.uber.org/zap"
)

var (
	errUnavailable = errors.New("feature not configured")
	errBadPaging   = errors.New("limit and offset must be non-negative integers")
)

// statusFor maps domain errors to HTTP codes. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrEmptyBody),
		errors.Is(err, utils.ErrInvalidPhone),
		errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, cart.ErrInvalidItemID),
		errors.Is(err, cart.ErrNegativeQuantity),
		errors.Is(err, cart.ErrInvalidProfile),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidOrderID),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, delivery.ErrInvalidStatus),
		errors.Is(err, delivery.ErrInvalidDriverStatus),
		errors.Is(err, delivery.ErrInvalidDriver),
		errors.Is(err, delivery.ErrUnknownCommand),
		errors.Is(err, notify.ErrNoRecipient),
		errors.Is(err, admin.ErrNoRecipients),
		errors.Is(err, admin.ErrInvalidRecipient),
		errors.Is(err, admin.ErrInvalidCutoff),
		errors.Is(err, errBadPaging):
		return http.StatusBadRequest
	case errors.Is(err, admin.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, delivery.ErrNotFound),
		errors.Is(err, delivery.ErrDriverNotFound),
		errors.Is(err, payment.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, payment.ErrAlreadyWatching),
		errors.Is(err, delivery.ErrAlreadyAssigned),
		errors.Is(err, delivery.ErrDriverUnavailable),
		errors.Is(err, delivery.ErrInvalidTransition),
		errors.Is(err, delivery.ErrOrderNotReady):
		return http.StatusConflict
	case errors.Is(err, payment.ErrPriceUnavailable),
		errors.Is(err, payment.ErrConnectionFailed),
		errors.Is(err, payment.ErrSubscriptionEnded),
		errors.Is(err, cart.ErrFailedPersist),
		errors.Is(err, cart.ErrFailedLoad):
		return http.StatusBadGateway
	case errors.Is(err, payment.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, errUnavailable),
		errors.Is(err, admin.ErrLoginDisabled),
		errors.Is(err, notify.ErrNotConfigured),
		errors.Is(err, payment.ErrMonitorClosed),
		errors.Is(err, events.ErrHubClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError logs server-side failures and hides their detail from clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("request failed",
			zap.String("layer", "handler"),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	utils.WriteJSONError(w, msg, code)
}
