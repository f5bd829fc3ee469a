package shipping

import (
	"net/http"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes the serviceability endpoint.
type Handler struct {
	Svc *Service
}

// Serviceability handles POST /shipping/serviceability. Missing dimensions fall
// back to the configured package defaults.
func (h *Handler) Serviceability(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	res, err := h.Svc.Check(r.Context(), req)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}
