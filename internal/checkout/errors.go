package checkout

import (
	"errors"
	"net/http"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

var (
	// ErrSessionNotFound is returned for unknown, expired or abandoned sessions.
	ErrSessionNotFound = errors.New("checkout: session not found")
	// ErrStaleResult marks a result whose request id is no longer active.
	ErrStaleResult = errors.New("checkout: stale result")
)

func errOutOfStock() error {
	return common.NewAppError("OUT_OF_STOCK", "none of the items are in stock", http.StatusUnprocessableEntity, nil)
}

func errNoAddress() error { return common.Validation("select a delivery address") }

func errNoMethod() error { return common.Validation("select a payment method") }

func errNoContact() error { return common.Validation("add a phone number or email to pay online") }

func errUnserviceable() error {
	return common.NewAppError("PINCODE_NOT_SERVICEABLE", "we do not deliver to this pincode yet", http.StatusUnprocessableEntity, nil)
}

func errInProgress() error {
	return common.NewAppError("CHECKOUT_IN_PROGRESS", "your order is already being placed", http.StatusConflict, nil)
}

func errBusy(err error) error {
	return common.NewAppError("CHECKOUT_BUSY", "checkout is busy, please try again", http.StatusConflict, err)
}

func errGone() error {
	return common.NewAppError("CHECKOUT_NOT_FOUND", "this checkout has ended, please start again", http.StatusNotFound, ErrSessionNotFound)
}

func errLoad(err error) error {
	return common.NewAppError("CHECKOUT_LOAD_FAILED", "could not load checkout, please try again", http.StatusBadGateway, err)
}

func errNotEditable(s State) error {
	if s == StateDone {
		return common.NewAppError("CHECKOUT_COMPLETE", "this order has already been placed", http.StatusConflict, nil)
	}
	return errInProgress()
}

func codUnavailable(reason string) error {
	if reason == "" {
		reason = "cash on delivery is not available"
	}
	return common.Unavailable("COD_NOT_AVAILABLE", reason, nil)
}

func staleResult() error {
	return common.NewAppError("STALE_RESULT", "this result is no longer current", http.StatusConflict, ErrStaleResult)
}

func paymentFailed(code, message string, v View) error {
	return common.NewAppError(code, message, http.StatusPaymentRequired, nil).
		WithDetails(map[string]any{"session": v})
}

func placeFailed(err error, v View) error {
	return common.NewAppError("ORDER_FAILED", "we could not place your order, please try again", http.StatusBadGateway, err).
		WithDetails(map[string]any{"session": v})
}
