package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler serves the public product listing and detail pages.
type Handler struct {
	Svc *Service
}

func (h Handler) Routes(r chi.Router) {
	r.Get("/", h.Products)
	r.Get("/{id}", h.ProductDetail)
}

func (h Handler) Products(w http.ResponseWriter, r *http.Request) {
	params, err := h.Svc.ParseListParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	page, err := h.Svc.ListProducts(r.Context(), params)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(page.Total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       page.Items,
		"pagination": common.NewPagination(page.Page, page.Limit, page.Total),
	})
}

func (h Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	product, err := h.Svc.GetProductDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}
