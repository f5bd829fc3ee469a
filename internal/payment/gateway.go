// Package payment talks to the payment gateway: creating gateway orders,
// verifying hosted-checkout results and classifying callbacks.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrAmountMismatch means the gateway order does not match what was requested.
var ErrAmountMismatch = errors.New("payment: gateway order amount mismatch")

// OrderRequest creates a gateway order. Amount is in integer minor units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrder is the gateway's view of an order.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// VerifyRequest asks the backend to check a hosted-checkout success result.
type VerifyRequest struct {
	PaymentID      string `json:"payment_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Signature      string `json:"signature"`
	LocalOrderID   string `json:"local_order_id"`
}

// Gateway abstracts gateway order creation and payment verification.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error)
	Verify(ctx context.Context, req VerifyRequest) (bool, error)
}

func (r OrderRequest) validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("payment: amount must be positive, got %d", r.Amount)
	}
	if strings.TrimSpace(r.Currency) == "" || strings.TrimSpace(r.Receipt) == "" {
		return errors.New("payment: currency and receipt are required")
	}
	return nil
}

func checkOrder(req OrderRequest, got GatewayOrder) error {
	if got.ID == "" {
		return errors.New("payment: gateway order has no id")
	}
	if got.Amount != req.Amount || !strings.EqualFold(got.Currency, req.Currency) {
		return fmt.Errorf("%w: requested %d %s, got %d %s", ErrAmountMismatch, req.Amount, req.Currency, got.Amount, got.Currency)
	}
	return nil
}

func (r VerifyRequest) validate() error {
	if r.PaymentID == "" || r.GatewayOrderID == "" || r.Signature == "" || r.LocalOrderID == "" {
		return errors.New("payment: verification fields are required")
	}
	return nil
}
