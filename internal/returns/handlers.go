package returns

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes return requests to the signed-in user.
type Handler struct {
	Svc *Service
}

// Create handles POST /api/v1/returns.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	req, err := h.Svc.Create(r.Context(), userID, in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": req})
}

// List handles GET /api/v1/returns.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	list, err := h.Svc.List(r.Context(), userID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

// Cancel handles POST /api/v1/returns/{id}/cancel.
func (h Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	req, err := h.Svc.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": req})
}

// Eligibility handles GET /api/v1/order-items/{id}/return-eligibility.
func (h Handler) Eligibility(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	el, err := h.Svc.Eligibility(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": el})
}

// Reasons handles GET /api/v1/returns/reasons.
func (h Handler) Reasons(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": Reasons})
}
