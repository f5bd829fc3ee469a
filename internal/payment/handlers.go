package payment

import (
	"net/http"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// SandboxHandler lets development clients simulate the hosted checkout by
// minting a signed success result for a sandbox order.
type SandboxHandler struct {
	Sandbox *Sandbox
}

type sandboxPayRequest struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required"`
}

// Pay handles POST /payments/sandbox/pay.
func (h *SandboxHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req sandboxPayRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	paymentID := NewPaymentID()
	common.JSON(w, http.StatusOK, map[string]any{"data": Callback{
		PaymentID:      paymentID,
		GatewayOrderID: req.GatewayOrderID,
		Signature:      h.Sandbox.Sign(req.GatewayOrderID, paymentID),
	}})
}
