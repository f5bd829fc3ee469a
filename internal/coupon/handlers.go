package coupon

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes the coupon screen endpoints.
type Handler struct {
	Svc *Service
}

type validateRequest struct {
	Code       string          `json:"code" validate:"required,max=64"`
	OrderTotal decimal.Decimal `json:"order_total"`
}

// List returns the coupons available to apply.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Svc.ListAvailable(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []Coupon{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

// Validate previews a coupon against a total without applying it to a session.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	applied, err := h.Svc.Validate(r.Context(), req.Code, req.OrderTotal)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"coupon":   applied,
		"discount": applied.Terms.Discount(req.OrderTotal),
	}})
}
