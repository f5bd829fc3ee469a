package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes the cart endpoints. All routes require authentication.
type Handler struct {
	Svc *Service
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// Get handles GET /cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	view, err := h.Svc.View(r.Context(), userID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Count handles GET /cart/count.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	n, err := h.Svc.Count(r.Context(), userID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]int{"count": n}})
}

// AddItem handles POST /cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	var in AddInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	view, err := h.Svc.Add(r.Context(), userID, in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// UpdateItem handles PATCH /cart/items/{id}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	var req quantityRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	view, err := h.Svc.UpdateQuantity(r.Context(), userID, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RemoveItem handles DELETE /cart/items/{id}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	view, err := h.Svc.Remove(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Clear handles DELETE /cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := h.Svc.Clear(r.Context(), userID); err != nil {
		common.WriteError(w, r, common.Upstream(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
