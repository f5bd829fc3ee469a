package order

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler serves the user's order history.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/orders.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	list, total, err := h.Svc.List(r.Context(), userID, page, perPage)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       list,
		"pagination": common.NewPagination(page, perPage, total),
	})
}

// Get handles GET /api/v1/orders/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	o, err := h.Svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": o})
}
