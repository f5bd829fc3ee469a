package address

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes REST endpoints for the address book.
type Handler struct {
	Svc *Service
}

// List handles GET /addresses.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
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

// Get handles GET /addresses/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	a, err := h.Svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": a})
}

// Default handles GET /addresses/default.
func (h *Handler) Default(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	a, err := h.Svc.GetDefault(r.Context(), userID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": a})
}

// Create handles POST /addresses.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
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
	a, err := h.Svc.Create(r.Context(), userID, in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": a})
}

// Update handles PUT /addresses/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
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
	a, err := h.Svc.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": a})
}

// Delete handles DELETE /addresses/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := h.Svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetDefault handles POST /addresses/{id}/default.
func (h *Handler) SetDefault(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	a, err := h.Svc.SetDefault(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": a})
}
