package payment

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Outcome classifies a hosted-checkout result.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// cancelCode is the checkout SDK's "dismissed by user" code.
const cancelCode = "2"

// Code accepts both numeric and string error codes.
type Code string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Code(n.String())
	return nil
}

// CallbackError is the failure payload from the hosted checkout.
type CallbackError struct {
	Code        Code   `json:"code"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

// Callback is what the device reports after the hosted checkout closes.
type Callback struct {
	PaymentID      string         `json:"payment_id"`
	GatewayOrderID string         `json:"gateway_order_id"`
	Signature      string         `json:"signature"`
	Error          *CallbackError `json:"error,omitempty"`
}

// Outcome classifies the callback. A result without an error and with a
// payment id is a success; user cancellation is told apart from real failures.
func (c Callback) Outcome() Outcome {
	if c.Error == nil {
		if c.PaymentID != "" {
			return OutcomeSuccess
		}
		return OutcomeFailed
	}
	if string(c.Error.Code) == cancelCode || strings.EqualFold(c.Error.Reason, "payment_cancelled") {
		return OutcomeCancelled
	}
	return OutcomeFailed
}

// Description returns the gateway's failure text, or a generic one.
func (c Callback) Description() string {
	if c.Error != nil && strings.TrimSpace(c.Error.Description) != "" {
		return c.Error.Description
	}
	return "payment failed"
}
